package db

import (
	"time"

	"github.com/covershift/dispatch/pkg/core/geo"
)

// ShiftStatus is the lifecycle status of a shift, owned by the booking
// and worker flows.
type ShiftStatus string

const (
	ShiftPending   ShiftStatus = "pending"
	ShiftAccepted  ShiftStatus = "accepted"
	ShiftCheckedIn ShiftStatus = "checked_in"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
)

// DispatchStatus is the dispatcher's own progress marker on a shift,
// separate from the lifecycle status.
type DispatchStatus string

const (
	DispatchNone             DispatchStatus = "none"
	DispatchWelfareSent      DispatchStatus = "welfare_sent"
	DispatchAtRisk           DispatchStatus = "at_risk"
	DispatchReplacementFound DispatchStatus = "replacement_found"
	DispatchFailed           DispatchStatus = "failed"
)

// dispatchTransitions defines the legal forward moves of the dispatch
// state machine. A reset to DispatchNone is additionally allowed from
// any non-terminal state when the assigned worker checks in or a
// replacement is confirmed.
var dispatchTransitions = map[DispatchStatus][]DispatchStatus{
	DispatchNone:        {DispatchWelfareSent, DispatchFailed},
	DispatchWelfareSent: {DispatchAtRisk, DispatchFailed, DispatchNone},
	DispatchAtRisk:      {DispatchReplacementFound, DispatchFailed, DispatchNone},
}

// CanTransition reports whether moving from s to next is a legal
// dispatch-status transition.
func (s DispatchStatus) CanTransition(next DispatchStatus) bool {
	for _, allowed := range dispatchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further dispatcher action applies.
func (s DispatchStatus) Terminal() bool {
	return s == DispatchFailed || s == DispatchReplacementFound
}

// OfferStatus is the state of a single time-boxed shift offer.
type OfferStatus string

const (
	OfferPending    OfferStatus = "pending"
	OfferAccepted   OfferStatus = "accepted"
	OfferExpired    OfferStatus = "expired"
	OfferSuperseded OfferStatus = "superseded"
)

// CandidateTier is the relaxation tier used when querying the worker
// pool. The locator starts at the strictest tier and widens until it
// finds somebody.
type CandidateTier int

const (
	TierAvailable CandidateTier = iota // active AND available
	TierActive                         // active, availability ignored
	TierAll                            // every worker on the books
)

func (t CandidateTier) String() string {
	switch t {
	case TierAvailable:
		return "available"
	case TierActive:
		return "active"
	default:
		return "all"
	}
}

// Shift is a single scheduled work assignment at a venue.
type Shift struct {
	ID               string
	VenueID          string
	VenueName        string
	Address          string
	ManagerID        string
	Location         *geo.Point
	StartTime        time.Time
	EndTime          time.Time
	HourlyRate       float64
	AssignedWorkerID *string
	Status           ShiftStatus
	DispatchStatus   DispatchStatus
	WelfareSentAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Worker is a standby candidate eligible to pick up shifts.
type Worker struct {
	ID        string
	FirstName string
	LastName  string
	Active    bool
	Available bool
	Skills    []string
	Rating    float64
	Location  *geo.Point
	LocatedAt *time.Time
}

// DisplayName returns the worker's name as shown in notifications.
func (w Worker) DisplayName() string {
	if w.LastName == "" {
		return w.FirstName
	}
	return w.FirstName + " " + w.LastName
}

// ShiftOffer is a time-boxed invitation for one worker to claim one
// vacant shift. The rate, times, venue and distance are snapshotted at
// creation time so the worker can decide without another round-trip.
type ShiftOffer struct {
	ID            string
	ShiftID       string
	WorkerID      string
	Status        OfferStatus
	ExpiresAt     time.Time
	HourlyRate    float64
	StartTime     time.Time
	EndTime       time.Time
	VenueName     string
	DistanceMiles *float64
	CreatedAt     time.Time
}

// Live reports whether the offer can still be accepted at the given
// instant. Expiry is checked against the stored timestamp, not the
// stored status, so an expired-but-unswept offer is never live.
func (o ShiftOffer) Live(now time.Time) bool {
	return o.Status == OfferPending && now.Before(o.ExpiresAt)
}

// Penalty is a ledger entry recorded against a worker, currently only
// for no-shows that forced a replacement.
type Penalty struct {
	ID        string
	WorkerID  string
	ShiftID   string
	Reason    string
	CreatedAt time.Time
}

// DispatchEvent is one audit-trail entry for a dispatch-status
// transition.
type DispatchEvent struct {
	ID         int64
	ShiftID    string
	FromStatus DispatchStatus
	ToStatus   DispatchStatus
	OccurredAt time.Time
}

// Acceptance is the committed outcome of a winning replacement
// acceptance, returned by the store so the caller can fire
// notifications after the transaction.
type Acceptance struct {
	Shift               Shift
	WorkerID            string
	ReplacedWorkerID    string
	SupersededWorkerIDs []string
}
