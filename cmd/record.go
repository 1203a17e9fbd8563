package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sensorforge/multicorder/internal/depthcam"
	"github.com/sensorforge/multicorder/internal/device"
	"github.com/sensorforge/multicorder/internal/microphone"
	"github.com/sensorforge/multicorder/internal/recorder"
)

var (
	recordName     string
	recordDuration int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from all configured devices",
	Long: `Start every configured device together, record until interrupted (or for
a fixed duration), then stop them together and write the session manifest.

Devices that fail to start do not abort the session: the remaining devices
keep recording and the failure is flagged in the manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := buildRecorder()
		if err != nil {
			return err
		}

		sess, err := rec.Setup(recordName)
		if err != nil {
			return fmt.Errorf("failed to set up session: %w", err)
		}
		slog.Info("Session prepared", "session", sess.Name, "dir", sess.Dir)

		if err := rec.Start(); err != nil {
			var partial *recorder.PartialStartError
			if !errors.As(err, &partial) {
				return fmt.Errorf("failed to start recording: %w", err)
			}
			slog.Warn("Recording started with failed devices", "failed_devices", partial.Failed)
		}

		if recordDuration > 0 {
			slog.Info("Recording", "seconds", recordDuration)
			timer := time.NewTimer(time.Duration(recordDuration) * time.Second)
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-timer.C:
			case <-sigChan:
				timer.Stop()
			}
		} else {
			slog.Info("Recording... Press Ctrl+C to stop")
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan
		}

		slog.Info("Stopping recording...")
		manifest, err := rec.Stop()
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		for _, d := range manifest.Devices {
			slog.Info("Device result", "device", d.ID, "status", d.Status, "output", d.OutputFile)
		}
		fmt.Printf("Recording finished. Output: %s\n", sess.Dir)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordName, "name", "n", "", "session name (default is a timestamp)")
	recordCmd.Flags().IntVarP(&recordDuration, "duration", "d", 0, "recording duration in seconds (0 waits for Ctrl+C)")
}

// buildRecorder assembles the configured device set and wraps it in a
// recorder. New device kinds are added by wiring their factory here, the
// recorder itself never changes.
func buildRecorder() (*recorder.Recorder, error) {
	registry := device.NewRegistry(
		microphone.Factory(),
		depthcam.Factory(),
	)

	devices, err := registry.Build(cfg.Devices)
	if err != nil {
		return nil, fmt.Errorf("failed to build device set: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices configured in %s", cfgFile)
	}

	return recorder.New(devices, cfg.Output.Directory)
}
