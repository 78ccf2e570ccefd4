package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/db"
)

// Default search parameters. Replacement search uses the narrow radius
// for fast turnaround; proactive new-booking fanout casts wider.
const (
	DefaultReplacementRadiusMiles = 5.0
	DefaultBookingRadiusMiles     = 15.0
	DefaultMaxCandidates          = 20
)

// CandidateStore is the worker-directory surface the locator reads.
type CandidateStore interface {
	ListWorkers(ctx context.Context, tier db.CandidateTier) ([]db.Worker, error)
	ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error)
}

// Candidate is one eligible worker annotated with the computed distance
// to the shift site, nil when either side's location is unknown.
type Candidate struct {
	Worker        db.Worker
	DistanceMiles *float64
}

// CandidateSet is the ranked result of a locator run.
type CandidateSet struct {
	Candidates []Candidate
	Tier       db.CandidateTier
	// DistanceFiltered is false when proximity filtering was skipped,
	// either because the site has no coordinates or because no candidate
	// inside the radius had known coordinates.
	DistanceFiltered bool
}

// LocateOptions tunes a locator run. Zero values fall back to the
// replacement-search defaults.
type LocateOptions struct {
	RadiusMiles   float64
	MaxCandidates int
}

// LocateCandidates produces the ranked, eligible candidate list for a
// shift. The pool query relaxes tier by tier until it finds somebody,
// and proximity filtering never runs when it would starve the pipeline:
// an empty final result means "no one available", not an error.
func LocateCandidates(ctx context.Context, store CandidateStore, logger *zap.Logger, shift *db.Shift, opts LocateOptions) (*CandidateSet, error) {
	if opts.RadiusMiles <= 0 {
		opts.RadiusMiles = DefaultReplacementRadiusMiles
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}

	// Relax the pool query until it returns workers.
	var pool []db.Worker
	tier := db.TierAvailable
	for _, t := range []db.CandidateTier{db.TierAvailable, db.TierActive, db.TierAll} {
		workers, err := store.ListWorkers(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to list workers at tier %s: %w", t, err)
		}
		if len(workers) > 0 {
			pool, tier = workers, t
			break
		}
	}
	if tier != db.TierAvailable {
		logger.Info("Candidate pool relaxed",
			zap.String("shift_id", shift.ID),
			zap.String("tier", tier.String()))
	}
	if len(pool) == 0 {
		logger.Warn("No workers on the books at any tier", zap.String("shift_id", shift.ID))
		return &CandidateSet{Tier: db.TierAll}, nil
	}

	// The currently assigned worker is the one being replaced, never a
	// candidate for their own shift.
	assigned := ""
	if shift.AssignedWorkerID != nil {
		assigned = *shift.AssignedWorkerID
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, w := range pool {
		if w.ID == assigned {
			continue
		}
		c := Candidate{Worker: w}
		if shift.Location != nil && w.Location != nil {
			d := geo.DistanceMiles(*shift.Location, *w.Location)
			c.DistanceMiles = &d
		}
		candidates = append(candidates, c)
	}

	// Proximity filter: drop candidates with a known distance beyond
	// the radius, but only when at least one candidate with known
	// coordinates sits inside it. Unknown-coordinate candidates are
	// always kept.
	filtered := false
	if shift.Location != nil {
		anyWithin := false
		for _, c := range candidates {
			if c.DistanceMiles != nil && *c.DistanceMiles <= opts.RadiusMiles {
				anyWithin = true
				break
			}
		}
		if anyWithin {
			kept := candidates[:0]
			for _, c := range candidates {
				if c.DistanceMiles != nil && *c.DistanceMiles > opts.RadiusMiles {
					continue
				}
				kept = append(kept, c)
			}
			candidates = kept
			filtered = true
		} else {
			logger.Warn("Distance filter skipped, no located candidate within radius",
				zap.String("shift_id", shift.ID),
				zap.Float64("radius_miles", opts.RadiusMiles))
		}
	} else {
		logger.Warn("Shift has no site coordinates, distance filter skipped",
			zap.String("shift_id", shift.ID))
	}

	// Conflict exclusion: anyone already committed to an overlapping
	// shift is out. Back-to-back shifts do not overlap.
	booked, err := store.ListBookedWorkerIDs(ctx, shift.StartTime, shift.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked workers: %w", err)
	}
	bookedSet := make(map[string]bool, len(booked))
	for _, id := range booked {
		bookedSet[id] = true
	}
	free := candidates[:0]
	for _, c := range candidates {
		if !bookedSet[c.Worker.ID] {
			free = append(free, c)
		}
	}
	candidates = free

	// Rank by rating, closest first among equals; unknown distance
	// sorts last.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Worker.Rating != candidates[j].Worker.Rating {
			return candidates[i].Worker.Rating > candidates[j].Worker.Rating
		}
		di, dj := candidates[i].DistanceMiles, candidates[j].DistanceMiles
		switch {
		case di != nil && dj != nil:
			return *di < *dj
		case di != nil:
			return true
		default:
			return false
		}
	})

	if len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	logger.Debug("Candidate search complete",
		zap.String("shift_id", shift.ID),
		zap.String("tier", tier.String()),
		zap.Bool("distance_filtered", filtered),
		zap.Int("candidates", len(candidates)))

	return &CandidateSet{Candidates: candidates, Tier: tier, DistanceFiltered: filtered}, nil
}
