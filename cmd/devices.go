package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensorforge/multicorder/internal/depthcam"
	"github.com/sensorforge/multicorder/internal/device"
	"github.com/sensorforge/multicorder/internal/microphone"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List configured devices and probe their configuration",
	Long: `List every device in the configuration with its parameters and run a
configuration probe against each one. The probe is the same validation that
runs during session setup, so a device reported here as invalid will also
fail a real recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := device.NewRegistry(
			microphone.Factory(),
			depthcam.Factory(),
		)

		devices, err := registry.Build(cfg.Devices)
		if err != nil {
			return fmt.Errorf("failed to build device set: %w", err)
		}
		if len(devices) == 0 {
			fmt.Println("No devices configured.")
			return nil
		}

		for _, d := range devices {
			fmt.Printf("%s (%s)\n", d.ID(), d.Name())
			desc := d.Describe()
			for key, value := range desc.Params {
				if key == "name" {
					continue
				}
				fmt.Printf("  %s: %v\n", key, value)
			}
			if err := d.Configure(); err != nil {
				fmt.Printf("  probe: FAILED - %v\n", err)
			} else {
				fmt.Printf("  probe: ok\n")
			}
		}
		return nil
	},
}
