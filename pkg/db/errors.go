package db

import "errors"

// Sentinel errors returned by store implementations. Services map these
// onto user-visible outcomes; in particular ErrAlreadyAssigned is the
// expected "someone else got it" result under concurrent acceptance and
// must stay distinguishable from validation failures.
var (
	ErrShiftNotFound  = errors.New("shift not found")
	ErrWorkerNotFound = errors.New("worker not found")
	ErrOfferNotFound  = errors.New("no offer for this worker and shift")

	// ErrAlreadyAssigned means the shift was resolved by a competing
	// acceptance (or by other means) before this attempt committed.
	ErrAlreadyAssigned = errors.New("shift already assigned to another worker")

	// ErrOfferExpired means the offer's expiry timestamp has passed.
	ErrOfferExpired = errors.New("offer has expired")

	// ErrShiftClosed means the shift's lifecycle status no longer
	// permits dispatcher action (cancelled, completed or never accepted).
	ErrShiftClosed = errors.New("shift is not open for replacement")

	// ErrStaleStatus means a conditional dispatch-status update found
	// the row no longer in the expected prior state.
	ErrStaleStatus = errors.New("dispatch status changed concurrently")
)
