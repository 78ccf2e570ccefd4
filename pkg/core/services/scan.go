package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

// WatchdogStore is the full store surface one scan needs.
type WatchdogStore interface {
	DispatchStore
	ListRiskWindowShifts(ctx context.Context, from, to time.Time) ([]db.Shift, error)
}

// ScanOptions tunes one watchdog run. The look-back/look-ahead windows
// bound the risk window around now; CheckOptions flow through to each
// per-shift check.
type ScanOptions struct {
	Lookback time.Duration
	Check    CheckOptions
}

// ScanSummary is the observable result of one watchdog run. Individual
// shift failures are counted, not propagated: one bad shift never halts
// the batch.
type ScanSummary struct {
	Scanned  int
	Outcomes map[CheckOutcome]int
	Errors   int
	Elapsed  time.Duration
}

// RunWatchdog enumerates shifts inside the risk window, most urgent
// first, and runs the guard status checker on each. The scan itself
// holds no state and is safe to re-run at any time; all real
// transitions happen inside CheckGuardStatus.
func RunWatchdog(ctx context.Context, store WatchdogStore, workers CandidateStore, notifier Notifier, logger *zap.Logger, opts ScanOptions) (*ScanSummary, error) {
	started := time.Now()
	opts.Check.fill()
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	now := opts.Check.Now

	from := now.Add(-opts.Lookback)
	to := now.Add(opts.Check.Lookahead)

	shifts, err := store.ListRiskWindowShifts(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk window shifts: %w", err)
	}

	summary := &ScanSummary{
		Scanned:  len(shifts),
		Outcomes: make(map[CheckOutcome]int),
	}

	for _, shift := range shifts {
		result, err := CheckGuardStatus(ctx, store, workers, notifier, logger, shift.ID, opts.Check)
		if err != nil {
			logger.Error("Shift check failed",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			summary.Errors++
			continue
		}
		summary.Outcomes[result.Outcome]++
	}

	summary.Elapsed = time.Since(started)
	logger.Info("Watchdog scan complete",
		zap.Int("scanned", summary.Scanned),
		zap.Int("errors", summary.Errors),
		zap.Duration("elapsed", summary.Elapsed))

	return summary, nil
}
