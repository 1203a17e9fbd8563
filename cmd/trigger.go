package cmd

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	triggerAddr string
	triggerName string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [setup|start|stop|status]",
	Short: "Send a trigger event to a remote recorder",
	Long: `Send one trigger event to a multicorder instance running 'serve' on
another machine. This is the experiment-control side of the remote trigger
protocol: setup prepares the session, start and stop drive the recording,
status reports the recorder and device states.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"setup", "start", "stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		operation := args[0]
		client := resty.New().SetBaseURL(triggerAddr)

		var resp *resty.Response
		var err error
		switch operation {
		case "status":
			resp, err = client.R().Get("/status")
		case "setup":
			resp, err = client.R().SetFormData(map[string]string{"name": triggerName}).Post("/setup")
		case "start", "stop":
			resp, err = client.R().Post("/" + operation)
		default:
			return fmt.Errorf("unknown operation %q", operation)
		}
		if err != nil {
			return fmt.Errorf("trigger %s failed: %w", operation, err)
		}

		fmt.Println(resp.String())
		if resp.IsError() {
			return fmt.Errorf("trigger %s rejected: %s", operation, resp.Status())
		}
		return nil
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerAddr, "addr", "http://localhost:8080", "address of the remote listener")
	triggerCmd.Flags().StringVarP(&triggerName, "name", "n", "", "session name for the setup event")
}
