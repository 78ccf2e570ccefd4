package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/core/services"
)

// WatchCmd creates the watch command: run the scanner continuously on
// the configured recurrence, for deployments without a managed cron.
func WatchCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the watchdog scanner continuously on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := rrule.StrToRRule(app.Cfg.Watchdog.ScanRule)
			if err != nil {
				return fmt.Errorf("invalid scan rule: %w", err)
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("Watchdog started", zap.String("rule", app.Cfg.Watchdog.ScanRule))

			for {
				next := rule.After(time.Now(), false)
				if next.IsZero() {
					return fmt.Errorf("scan rule produced no further occurrences")
				}

				select {
				case <-ctx.Done():
					app.Logger.Info("Watchdog stopping")
					return nil
				case <-time.After(time.Until(next)):
				}

				if _, err := services.RunWatchdog(ctx, app.Database, app.Workers, app.Notifier, app.Logger, app.ScanOptions()); err != nil {
					// Keep watching; the next pass retries from durable state.
					app.Logger.Error("Watchdog scan failed", zap.Error(err))
				}
			}
		},
	}
}
