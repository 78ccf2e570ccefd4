package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covershift/dispatch/pkg/core/services"
)

// CandidatesCmd creates the candidates command: preview the ranked
// candidate list for a shift without creating any offers.
func CandidatesCmd(app *AppContext) *cobra.Command {
	var radius float64

	cmd := &cobra.Command{
		Use:   "candidates <shift_id>",
		Short: "List ranked replacement candidates for a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shift, err := app.Database.GetShift(app.Ctx, args[0])
			if err != nil {
				return err
			}

			set, err := services.LocateCandidates(app.Ctx, app.Workers, app.Logger, shift, services.LocateOptions{
				RadiusMiles:   radius,
				MaxCandidates: app.Cfg.Fanout.MaxCandidates,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n%d candidate(s) for shift %s (tier: %s)\n\n", len(set.Candidates), shift.ID, set.Tier)
			for i, c := range set.Candidates {
				distance := "unknown distance"
				if c.DistanceMiles != nil {
					distance = fmt.Sprintf("%.1f mi", *c.DistanceMiles)
				}
				fmt.Printf("  %2d. %-24s rating %.1f, %s\n", i+1, c.Worker.DisplayName(), c.Worker.Rating, distance)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Float64Var(&radius, "radius", 0, "Search radius in miles (overrides config)")

	return cmd
}
