package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/covershift/dispatch/pkg/core/services"
)

// ScanCmd creates the scan command: one watchdog pass over the risk window.
func ScanCmd(app *AppContext) *cobra.Command {
	var lookback, lookahead int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one watchdog pass over shifts in the risk window",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.ScanOptions()
			if lookback > 0 {
				opts.Lookback = time.Duration(lookback) * time.Minute
			}
			if lookahead > 0 {
				opts.Check.Lookahead = time.Duration(lookahead) * time.Minute
			}

			summary, err := services.RunWatchdog(app.Ctx, app.Database, app.Workers, app.Notifier, app.Logger, opts)
			if err != nil {
				return err
			}

			fmt.Printf("\nScanned %d shift(s) in %s\n", summary.Scanned, summary.Elapsed.Round(time.Millisecond))
			for outcome, count := range summary.Outcomes {
				fmt.Printf("  %-16s %d\n", outcome, count)
			}
			if summary.Errors > 0 {
				fmt.Printf("  %-16s %d\n", "errors", summary.Errors)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().IntVar(&lookback, "lookback", 0, "Minutes into the past to scan (overrides config)")
	cmd.Flags().IntVar(&lookahead, "lookahead", 0, "Minutes into the future to scan (overrides config)")

	return cmd
}
