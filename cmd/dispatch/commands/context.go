package commands

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/internal/config"
	"github.com/covershift/dispatch/pkg/core/services"
	"github.com/covershift/dispatch/pkg/locations"
	"github.com/covershift/dispatch/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg       *config.Config
	Database  *postgres.DB
	Workers   services.CandidateStore
	Notifier  services.Notifier
	Locations *locations.Cache
	Logger    *zap.Logger
	Ctx       context.Context
}

// CheckOptions derives the per-shift checker tuning from config.
func (a *AppContext) CheckOptions() services.CheckOptions {
	return services.CheckOptions{
		Lookahead:     time.Duration(a.Cfg.Watchdog.LookaheadMinutes) * time.Minute,
		GracePeriod:   time.Duration(a.Cfg.Watchdog.GraceMinutes) * time.Minute,
		OfferTTL:      time.Duration(a.Cfg.Fanout.OfferTTLSeconds) * time.Second,
		RadiusMiles:   a.Cfg.Fanout.ReplacementRadiusMiles,
		MaxCandidates: a.Cfg.Fanout.MaxCandidates,
	}
}

// ScanOptions derives the watchdog tuning from config.
func (a *AppContext) ScanOptions() services.ScanOptions {
	return services.ScanOptions{
		Lookback: time.Duration(a.Cfg.Watchdog.LookbackMinutes) * time.Minute,
		Check:    a.CheckOptions(),
	}
}
