package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/covershift/dispatch/pkg/core/services"
)

// AcceptCmd creates the accept command: record an acceptance on behalf
// of a worker, e.g. one phoned in by an operator.
func AcceptCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <shift_id> <worker_id>",
		Short: "Accept a replacement offer on behalf of a worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.AcceptReplacement(app.Ctx, app.Database, app.Notifier, app.Logger, args[0], args[1], time.Time{})
			if err != nil {
				return err
			}

			switch result.Outcome {
			case services.AcceptWin:
				fmt.Printf("\n✓ Shift %s assigned to %s\n\n", args[0], args[1])
			default:
				fmt.Printf("\n✗ Not assigned: %s\n\n", result.Reason)
			}

			return nil
		},
	}
}
