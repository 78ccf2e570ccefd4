package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/covershift/dispatch/pkg/core/services"
)

// FanoutCmd creates the fanout command: offer a newly booked shift to
// the wide-radius pool.
func FanoutCmd(app *AppContext) *cobra.Command {
	var radius float64
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "fanout <shift_id>",
		Short: "Offer a new booking to standby workers in the wide radius",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := services.OfferOptions{
				RadiusMiles:   app.Cfg.Fanout.BookingRadiusMiles,
				TTL:           time.Duration(app.Cfg.Fanout.BookingTTLMinutes) * time.Minute,
				MaxCandidates: app.Cfg.Fanout.MaxCandidates,
			}
			if radius > 0 {
				opts.RadiusMiles = radius
			}
			if ttlMinutes > 0 {
				opts.TTL = time.Duration(ttlMinutes) * time.Minute
			}

			result, err := services.OfferShift(app.Ctx, app.Database, app.Workers, app.Notifier, app.Logger, args[0], opts)
			if err != nil {
				return err
			}

			fmt.Printf("\nShift %s: %d candidate(s) at tier %s\n", result.ShiftID, result.Candidates, result.Tier)
			if result.Fanout != nil {
				fmt.Printf("Offers: %d created, %d reused; %d notified, %d failed\n",
					result.Fanout.OffersCreated, result.Fanout.OffersReused,
					result.Fanout.NotificationsSent, result.Fanout.NotificationsFailed)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Float64Var(&radius, "radius", 0, "Search radius in miles (overrides config)")
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "Offer expiry in minutes (overrides config)")

	return cmd
}
