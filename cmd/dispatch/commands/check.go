package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covershift/dispatch/pkg/core/services"
)

// CheckCmd creates the check command: evaluate one shift.
func CheckCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <shift_id>",
		Short: "Run the guard status checker for a single shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.CheckGuardStatus(app.Ctx, app.Database, app.Workers, app.Notifier, app.Logger, args[0], app.CheckOptions())
			if err != nil {
				return err
			}

			fmt.Printf("\nShift %s: %s\n", result.ShiftID, result.Outcome)
			if result.Outcome == services.OutcomeAtRisk {
				fmt.Printf("Candidates found: %d\n", result.Candidates)
				if result.Fanout != nil {
					fmt.Printf("Offers: %d created, %d reused, %d refreshed; %d notified\n",
						result.Fanout.OffersCreated, result.Fanout.OffersReused,
						result.Fanout.OffersRefreshed, result.Fanout.NotificationsSent)
				}
			}
			fmt.Println()

			return nil
		},
	}
}
