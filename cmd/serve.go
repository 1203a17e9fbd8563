package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sensorforge/multicorder/internal/listener"
	"github.com/sensorforge/multicorder/internal/recorder"
)

var (
	serveAddr string
	serveNATS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Wait for remote trigger events",
	Long: `Run the trigger listener so an external experiment controller can drive
the recorder over the network: POST /setup, /start and /stop each map onto
one recorder operation, GET /status answers at any time.

With --nats the same operations are also served from the message bus
configured under listen.nats_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := buildRecorder()
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Listen.Address
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveNATS {
			if cfg.Listen.NATSURL == "" {
				return fmt.Errorf("--nats requires listen.nats_url in the configuration")
			}
			nl := listener.NewNATS(cfg.Listen.NATSURL, cfg.Listen.Subject)
			if err := nl.Bind(rec); err != nil {
				return err
			}
			go func() {
				if err := nl.Serve(ctx); err != nil {
					slog.Error("NATS listener failed", "error", err)
				}
			}()
		}

		hl := listener.NewHTTP(addr)
		if err := hl.Bind(rec); err != nil {
			return err
		}

		if err := hl.Serve(ctx); err != nil {
			return fmt.Errorf("listener failed: %w", err)
		}

		// If a recording was still in flight when the listener went down,
		// stop it through the normal path so hardware is released and the
		// manifest is written.
		if rec.State() == recorder.StateRecording {
			slog.Warn("Listener stopped while recording, stopping devices")
			if _, err := rec.Stop(); err != nil {
				return fmt.Errorf("failed to stop recording during shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen.address from config)")
	serveCmd.Flags().BoolVar(&serveNATS, "nats", false, "also serve trigger events from the configured NATS server")
}
