package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

// OfferOptions tunes a proactive fanout. Zero values use the wide
// new-booking defaults rather than the urgent replacement ones.
type OfferOptions struct {
	Now           time.Time
	RadiusMiles   float64
	TTL           time.Duration
	MaxCandidates int
}

// OfferShiftResult reports a proactive fanout round.
type OfferShiftResult struct {
	ShiftID    string
	Candidates int
	Tier       db.CandidateTier
	Fanout     *FanoutResult
}

// OfferShift runs the wide-radius, long-expiry fanout used when a new
// booking confirms staffing needs and the shift has no worker yet. It
// shares the locator and fanout with the replacement pipeline; only the
// radius and expiry differ.
func OfferShift(ctx context.Context, store DispatchStore, workers CandidateStore, notifier Notifier, logger *zap.Logger, shiftID string, opts OfferOptions) (*OfferShiftResult, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.RadiusMiles <= 0 {
		opts.RadiusMiles = DefaultBookingRadiusMiles
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultBookingTTL
	}

	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}
	switch shift.Status {
	case db.ShiftPending, db.ShiftAccepted:
		// offerable
	default:
		return nil, db.ErrShiftClosed
	}

	set, err := LocateCandidates(ctx, workers, logger, shift, LocateOptions{
		RadiusMiles:   opts.RadiusMiles,
		MaxCandidates: opts.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to locate candidates: %w", err)
	}

	result := &OfferShiftResult{ShiftID: shift.ID, Candidates: len(set.Candidates), Tier: set.Tier}
	if len(set.Candidates) == 0 {
		logger.Warn("No candidates for new booking", zap.String("shift_id", shift.ID))
		return result, nil
	}

	fanout, err := FanOutOffers(ctx, store, notifier, logger, shift, set.Candidates, opts.TTL, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to fan out offers: %w", err)
	}
	result.Fanout = fanout
	return result, nil
}
