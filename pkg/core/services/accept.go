package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

// AcceptStore is the single store operation acceptance needs; its
// implementation carries the whole concurrency guarantee.
type AcceptStore interface {
	AcceptOffer(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error)
}

// AcceptOutcome classifies an acceptance attempt for the caller.
type AcceptOutcome string

const (
	// AcceptWin: this worker is now assigned to the shift.
	AcceptWin AcceptOutcome = "accepted"
	// AcceptConflict: somebody else resolved the shift first. Expected
	// and frequent under concurrent acceptance, not an error.
	AcceptConflict AcceptOutcome = "conflict"
	// AcceptRejected: the attempt was invalid (offer expired, shift no
	// longer open) independent of any race.
	AcceptRejected AcceptOutcome = "rejected"
)

// AcceptResult is the structured outcome of one acceptance attempt.
type AcceptResult struct {
	Outcome    AcceptOutcome
	Reason     string
	Acceptance *db.Acceptance
}

// AcceptReplacement converts one pending offer into a confirmed
// assignment. The store transaction guarantees at most one winner per
// shift; this layer classifies the result and fires the post-commit
// notifications — winner confirmation, manager update, and a "no longer
// available" notice to every superseded candidate. Notification
// failures are logged and never affect the committed assignment.
func AcceptReplacement(ctx context.Context, store AcceptStore, notifier Notifier, logger *zap.Logger, shiftID, workerID string, now time.Time) (*AcceptResult, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	log := logger.With(zap.String("shift_id", shiftID), zap.String("worker_id", workerID))

	acc, err := store.AcceptOffer(ctx, shiftID, workerID, now)
	switch {
	case err == nil:
		// committed; notifications below
	case errors.Is(err, db.ErrAlreadyAssigned):
		log.Info("Acceptance lost the race")
		return &AcceptResult{Outcome: AcceptConflict, Reason: "someone else already accepted this shift"}, nil
	case errors.Is(err, db.ErrOfferExpired):
		return &AcceptResult{Outcome: AcceptRejected, Reason: "this offer has expired"}, nil
	case errors.Is(err, db.ErrShiftClosed):
		return &AcceptResult{Outcome: AcceptRejected, Reason: "this shift is no longer open"}, nil
	case errors.Is(err, db.ErrShiftNotFound), errors.Is(err, db.ErrOfferNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	shift := acc.Shift
	log.Info("Replacement confirmed",
		zap.String("replaced_worker_id", acc.ReplacedWorkerID),
		zap.Int("superseded", len(acc.SupersededWorkerIDs)))

	if err := notifier.Send(ctx, workerID,
		"Shift confirmed",
		fmt.Sprintf("You're on at %s, %s–%s.", shift.VenueName,
			shift.StartTime.Local().Format("Mon 15:04"), shift.EndTime.Local().Format("15:04")),
		map[string]string{"type": "shift_confirmed", "shift_id": shift.ID},
	); err != nil {
		log.Warn("Winner notification failed", zap.Error(err))
	}

	notifyManager(ctx, notifier, log, &shift,
		"Replacement found",
		fmt.Sprintf("A replacement has been confirmed for the %s shift at %s.",
			shift.StartTime.Local().Format("15:04"), shift.VenueName))

	for _, id := range acc.SupersededWorkerIDs {
		if err := notifier.Send(ctx, id,
			"Shift no longer available",
			fmt.Sprintf("The shift at %s has been taken.", shift.VenueName),
			map[string]string{"type": "offer_superseded", "shift_id": shift.ID},
		); err != nil {
			log.Warn("Superseded notification failed", zap.String("superseded_worker_id", id), zap.Error(err))
		}
	}

	return &AcceptResult{Outcome: AcceptWin, Acceptance: acc}, nil
}
