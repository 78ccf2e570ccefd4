package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/internal/api"
)

// ServeCmd creates the serve command: the HTTP trigger surface for the
// dispatcher (accept, check, scan, geo ping).
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatcher HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := &api.Server{
				Store:         app.Database,
				Workers:       app.Workers,
				Notifier:      app.Notifier,
				Locations:     app.Locations,
				Logger:        app.Logger,
				Lookback:      app.ScanOptions().Lookback,
				Check:         app.CheckOptions(),
				BookingRadius: app.Cfg.Fanout.BookingRadiusMiles,
				BookingTTL:    time.Duration(app.Cfg.Fanout.BookingTTLMinutes) * time.Minute,
			}

			addr := fmt.Sprintf(":%d", app.Cfg.ServerPort)
			app.Logger.Info("Server starting", zap.String("addr", addr))

			return http.ListenAndServe(addr, server.Routes())
		},
	}
}
