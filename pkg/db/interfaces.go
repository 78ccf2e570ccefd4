package db

import (
	"context"
	"time"

	"github.com/covershift/dispatch/pkg/core/geo"
)

// ShiftStore defines shift reads and the conditional dispatch-status
// update. TransitionDispatchStatus must be compare-and-set: it applies
// the new status only if the row still carries the expected prior
// status, and returns ErrStaleStatus otherwise.
type ShiftStore interface {
	GetShift(ctx context.Context, id string) (*Shift, error)
	ListRiskWindowShifts(ctx context.Context, from, to time.Time) ([]Shift, error)
	TransitionDispatchStatus(ctx context.Context, shiftID string, from, to DispatchStatus, at time.Time) error
}

// OfferStore defines offer reads/writes and the race-safe acceptance
// transaction.
type OfferStore interface {
	ListShiftOffers(ctx context.Context, shiftID string) ([]ShiftOffer, error)
	CreateOffers(ctx context.Context, offers []ShiftOffer) (int, error)
	RefreshOffers(ctx context.Context, offerIDs []string, expiresAt time.Time) error

	// AcceptOffer atomically assigns the shift to the worker, accepts
	// their offer, supersedes every other pending offer for the shift
	// and records a no-show penalty against the replaced worker. On any
	// precondition failure it returns one of the db sentinel errors and
	// leaves all rows untouched.
	AcceptOffer(ctx context.Context, shiftID, workerID string, now time.Time) (*Acceptance, error)
}

// WorkerStore defines the geolocation-bearing worker directory.
type WorkerStore interface {
	ListWorkers(ctx context.Context, tier CandidateTier) ([]Worker, error)

	// ListBookedWorkerIDs returns the IDs of workers holding any shift
	// in status pending/accepted/checked_in whose time range overlaps
	// [from, to].
	ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error)

	RecordWorkerLocation(ctx context.Context, workerID string, pt geo.Point, at time.Time) error
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Store is the full database surface wired into the application. The
// pgx-backed postgres.DB implements it; tests substitute in-memory
// fakes per service.
type Store interface {
	ShiftStore
	OfferStore
	WorkerStore
}
