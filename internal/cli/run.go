package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"homewatch/internal/alert"
	"homewatch/internal/batch"
	"homewatch/internal/monitor"
)

func (app *App) newOrchestrator() *batch.Orchestrator {
	mon := monitor.NewMonitor(app.Provider, app.Store, app.Logger)
	return batch.NewOrchestrator(app.Store, mon, alert.NewBuilder(), app.Logger, batch.Options{
		Concurrency:      app.Config.Batch.Concurrency,
		HistoryRetention: app.Config.History.Retention,
	})
}

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one batch run",
		Long: `Run the monitoring pipeline once across all eligible users and
print the aggregate result. The run never fails loudly: partial failures
are reported in the result's error list.`,
		Example: `  homewatch run
  homewatch run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.Batch.RunTimeout)
			defer cancel()

			result := app.newOrchestrator().Run(ctx)
			app.Probe.RecordRun(time.Now().UTC())

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Bold("Batch run %s", result.RunID)
			output.Printf("  Users processed:  %d\n", result.UsersProcessed)
			output.Printf("  Areas monitored:  %d\n", result.TargetAreasMonitored)
			output.Printf("  Alerts generated: %d\n", result.AlertsGenerated)
			output.Printf("  Duration:         %s\n", result.Duration.Round(time.Millisecond))
			if len(result.Errors) > 0 {
				output.Warning("  Errors: %d", len(result.Errors))
				for _, e := range result.Errors {
					output.Dim("    %s", e)
				}
			} else {
				output.Success("  No errors")
			}
			return nil
		},
	}
}

func newDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the batch on a fixed interval",
		Long: `Start a long-running process that executes a batch run every
batch.interval (default 4h). An optional HTTP health probe is served when
health.enabled is set.`,
		Example: `  homewatch daemon`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			orch := app.newOrchestrator()
			runOnce := func() {
				ctx, cancel := context.WithTimeout(context.Background(), app.Config.Batch.RunTimeout)
				defer cancel()
				orch.Run(ctx)
				app.Probe.RecordRun(time.Now().UTC())
			}

			if app.Config.Health.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/healthz", app.Probe.Handler())
				srv := &http.Server{Addr: app.Config.Health.Addr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						app.Logger.Error().Err(err).Msg("Health server stopped")
					}
				}()
				defer srv.Close()
				app.Logger.Info().Str("addr", app.Config.Health.Addr).Msg("Health probe listening")
			}

			c := cron.New()
			interval := app.Config.Batch.Interval
			if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), runOnce); err != nil {
				return fmt.Errorf("scheduling batch run: %w", err)
			}
			c.Start()
			defer c.Stop()

			output.Success("Daemon started, running every %s", interval)
			app.Logger.Info().Dur("interval", interval).Msg("Daemon started")

			// First run immediately rather than waiting a full interval.
			runOnce()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			app.Logger.Info().Msg("Daemon stopping")
			return nil
		},
	}
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show process health status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			status := app.Probe.Status()
			if output.IsJSON() {
				return output.JSON(status)
			}
			output.Success("Status: %s", status.Status)
			output.Printf("  Timestamp: %s\n", status.Timestamp.Format(time.RFC3339))
			output.Printf("  Uptime:    %s\n", status.Uptime)
			return nil
		},
	}
}
