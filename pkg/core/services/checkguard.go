package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

// Default escalation timings. A shift is "imminent" within the
// look-ahead window; once a welfare check is out, the worker gets the
// grace period to confirm before replacement search starts.
const (
	DefaultLookahead   = 15 * time.Minute
	DefaultLookback    = 15 * time.Minute
	DefaultGracePeriod = 5 * time.Minute
)

// DispatchStore is the shift+offer surface the checker mutates.
type DispatchStore interface {
	GetShift(ctx context.Context, id string) (*db.Shift, error)
	TransitionDispatchStatus(ctx context.Context, shiftID string, from, to db.DispatchStatus, at time.Time) error
	OfferWriter
}

// CheckOutcome is the per-shift result of one checker invocation.
type CheckOutcome string

const (
	OutcomeOK          CheckOutcome = "ok"
	OutcomeResolved    CheckOutcome = "resolved"
	OutcomeWelfareSent CheckOutcome = "welfare_sent"
	OutcomeAtRisk      CheckOutcome = "marked_at_risk"
	OutcomeFailed      CheckOutcome = "failed"
)

// CheckOptions tunes one checker invocation. Zero values use the
// defaults; Now is injectable for tests and defaults to the wall clock.
type CheckOptions struct {
	Now           time.Time
	Lookahead     time.Duration
	GracePeriod   time.Duration
	OfferTTL      time.Duration
	RadiusMiles   float64
	MaxCandidates int
}

func (o *CheckOptions) fill() {
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.OfferTTL <= 0 {
		o.OfferTTL = DefaultOfferTTL
	}
}

// CheckResult reports what the checker did for one shift.
type CheckResult struct {
	ShiftID    string
	Outcome    CheckOutcome
	Candidates int
	Fanout     *FanoutResult
}

// CheckGuardStatus evaluates one at-risk shift and applies at most one
// dispatch-status transition: resolve on check-in, send a welfare check
// when the start is imminent, escalate to replacement search once the
// grace period lapses, or mark the shift failed after its scheduled end.
//
// Every transition is a conditional update on the previously observed
// status, so re-invocation (or a concurrent scanner) can never resend a
// welfare check or double-escalate: the loser of the race simply
// observes a stale status and reports ok.
func CheckGuardStatus(ctx context.Context, store DispatchStore, workers CandidateStore, notifier Notifier, logger *zap.Logger, shiftID string, opts CheckOptions) (*CheckResult, error) {
	opts.fill()
	now := opts.Now

	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}
	log := logger.With(zap.String("shift_id", shift.ID), zap.String("dispatch_status", string(shift.DispatchStatus)))

	// A checked-in worker resolves any in-flight escalation.
	if shift.Status == db.ShiftCheckedIn {
		if shift.DispatchStatus == db.DispatchWelfareSent || shift.DispatchStatus == db.DispatchAtRisk {
			if err := store.TransitionDispatchStatus(ctx, shift.ID, shift.DispatchStatus, db.DispatchNone, now); err != nil && !errors.Is(err, db.ErrStaleStatus) {
				return nil, fmt.Errorf("failed to resolve dispatch status: %w", err)
			}
			log.Info("Worker checked in, dispatch resolved")
		}
		return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeResolved}, nil
	}

	if shift.Status != db.ShiftAccepted || shift.DispatchStatus.Terminal() {
		return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
	}

	// Past the scheduled end with no resolution: the shift went
	// unstaffed. No further offers are issued.
	if now.After(shift.EndTime) {
		if err := store.TransitionDispatchStatus(ctx, shift.ID, shift.DispatchStatus, db.DispatchFailed, now); err != nil {
			if errors.Is(err, db.ErrStaleStatus) {
				return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
			}
			return nil, fmt.Errorf("failed to mark shift failed: %w", err)
		}
		log.Warn("Shift went unstaffed", zap.Time("end_time", shift.EndTime))
		notifyManager(ctx, notifier, log, shift,
			"Shift unstaffed",
			fmt.Sprintf("The %s shift at %s could not be staffed.", shift.StartTime.Local().Format("15:04"), shift.VenueName))
		return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeFailed}, nil
	}

	switch shift.DispatchStatus {
	case db.DispatchNone:
		if now.Before(shift.StartTime.Add(-opts.Lookahead)) {
			return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
		}
		// Transition first, notify after: if the conditional update
		// loses a race the welfare check was already sent once.
		if err := store.TransitionDispatchStatus(ctx, shift.ID, db.DispatchNone, db.DispatchWelfareSent, now); err != nil {
			if errors.Is(err, db.ErrStaleStatus) {
				return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
			}
			return nil, fmt.Errorf("failed to mark welfare sent: %w", err)
		}
		if shift.AssignedWorkerID != nil {
			if err := notifier.Send(ctx, *shift.AssignedWorkerID,
				"Are you on your way?",
				fmt.Sprintf("Your %s shift at %s starts soon. Please check in or confirm.", shift.StartTime.Local().Format("15:04"), shift.VenueName),
				map[string]string{"type": "welfare_check", "shift_id": shift.ID},
			); err != nil {
				log.Warn("Welfare notification failed", zap.Error(err))
			}
		}
		log.Info("Welfare check sent")
		return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeWelfareSent}, nil

	case db.DispatchWelfareSent:
		welfareAt := shift.StartTime
		if shift.WelfareSentAt != nil {
			welfareAt = *shift.WelfareSentAt
		}
		if now.Sub(welfareAt) < opts.GracePeriod {
			return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
		}
		if err := store.TransitionDispatchStatus(ctx, shift.ID, db.DispatchWelfareSent, db.DispatchAtRisk, now); err != nil {
			if errors.Is(err, db.ErrStaleStatus) {
				return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
			}
			return nil, fmt.Errorf("failed to mark shift at risk: %w", err)
		}
		log.Warn("No response to welfare check, starting replacement search")
		return escalate(ctx, store, workers, notifier, log, shift, opts)

	case db.DispatchAtRisk:
		// Re-runs are cheap: with live offers outstanding there is
		// nothing to do, otherwise start a fresh fanout round so the
		// shift is never silently abandoned before its end.
		offers, err := store.ListShiftOffers(ctx, shift.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list offers: %w", err)
		}
		for _, o := range offers {
			if o.Live(now) {
				return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
			}
		}
		log.Info("All offers lapsed, starting fresh fanout round")
		return escalate(ctx, store, workers, notifier, log, shift, opts)
	}

	return &CheckResult{ShiftID: shift.ID, Outcome: OutcomeOK}, nil
}

// escalate runs the replacement pipeline for a shift already marked
// at_risk: locate candidates, then fan out offers. An empty candidate
// pool is a reported outcome, not an error; the shift stays at_risk and
// the next scan retries.
func escalate(ctx context.Context, store DispatchStore, workers CandidateStore, notifier Notifier, log *zap.Logger, shift *db.Shift, opts CheckOptions) (*CheckResult, error) {
	set, err := LocateCandidates(ctx, workers, log, shift, LocateOptions{
		RadiusMiles:   opts.RadiusMiles,
		MaxCandidates: opts.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to locate candidates: %w", err)
	}

	result := &CheckResult{ShiftID: shift.ID, Outcome: OutcomeAtRisk, Candidates: len(set.Candidates)}
	if len(set.Candidates) == 0 {
		log.Warn("No replacement candidates available")
		return result, nil
	}

	fanout, err := FanOutOffers(ctx, store, notifier, log, shift, set.Candidates, opts.OfferTTL, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to fan out offers: %w", err)
	}
	result.Fanout = fanout
	return result, nil
}

// notifyManager sends a best-effort notification to the venue manager.
func notifyManager(ctx context.Context, notifier Notifier, log *zap.Logger, shift *db.Shift, title, body string) {
	if shift.ManagerID == "" {
		return
	}
	if err := notifier.Send(ctx, shift.ManagerID, title, body, map[string]string{"type": "dispatch_update", "shift_id": shift.ID}); err != nil {
		log.Warn("Manager notification failed", zap.Error(err))
	}
}
