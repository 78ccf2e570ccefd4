package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covershift/dispatch/pkg/db"
)

// ListShiftOffers retrieves every offer ever issued for a shift,
// newest first.
func (d *DB) ListShiftOffers(ctx context.Context, shiftID string) ([]db.ShiftOffer, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, shift_id, worker_id, status, expires_at, hourly_rate,
		       start_time, end_time, venue_name, distance_miles, created_at
		FROM shift_offer
		WHERE shift_id = $1
		ORDER BY created_at DESC
	`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift offers: %w", err)
	}
	defer rows.Close()

	var offers []db.ShiftOffer
	for rows.Next() {
		var o db.ShiftOffer
		if err := rows.Scan(
			&o.ID, &o.ShiftID, &o.WorkerID, &o.Status, &o.ExpiresAt, &o.HourlyRate,
			&o.StartTime, &o.EndTime, &o.VenueName, &o.DistanceMiles, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shift offer: %w", err)
		}
		offers = append(offers, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift offers: %w", err)
	}

	return offers, nil
}

// CreateOffers inserts offer records in a batch, skipping any worker
// who already holds a pending offer for the same shift (enforced by the
// partial unique index). Returns the number actually created.
func (d *DB) CreateOffers(ctx context.Context, offers []db.ShiftOffer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, o := range offers {
		tag, err := tx.Exec(ctx, `
			INSERT INTO shift_offer (id, shift_id, worker_id, status, expires_at,
			                         hourly_rate, start_time, end_time, venue_name,
			                         distance_miles, created_at)
			VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (shift_id, worker_id) WHERE status = 'pending' DO NOTHING
		`, o.ID, o.ShiftID, o.WorkerID, o.ExpiresAt.UTC(), o.HourlyRate,
			o.StartTime, o.EndTime, o.VenueName, o.DistanceMiles, o.CreatedAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert shift offer: %w", err)
		}
		created += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// RefreshOffers extends the expiry of still-pending offers, used when a
// fresh fanout round reuses offers whose previous window lapsed.
func (d *DB) RefreshOffers(ctx context.Context, offerIDs []string, expiresAt time.Time) error {
	if len(offerIDs) == 0 {
		return nil
	}
	_, err := d.pool.Exec(ctx, `
		UPDATE shift_offer SET expires_at = $2
		WHERE id = ANY($1) AND status = 'pending'
	`, offerIDs, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to refresh shift offers: %w", err)
	}
	return nil
}

// AcceptOffer performs the replacement assignment as a single
// transaction. Both the shift row and the offer row are locked before
// the preconditions are checked, and the shift update itself re-checks
// the prior dispatch status, so two concurrent acceptances for the same
// shift cannot both commit: the loser observes the winner's state and
// gets db.ErrAlreadyAssigned.
func (d *DB) AcceptOffer(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shift WHERE id = $1 FOR UPDATE`, shiftID)
	shift, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock shift: %w", err)
	}

	if shift.Status != db.ShiftAccepted {
		return nil, db.ErrShiftClosed
	}
	if shift.DispatchStatus != db.DispatchWelfareSent && shift.DispatchStatus != db.DispatchAtRisk {
		// Already resolved, by a competing acceptance or a check-in.
		return nil, db.ErrAlreadyAssigned
	}

	var offerID string
	var offerStatus db.OfferStatus
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, status, expires_at FROM shift_offer
		WHERE shift_id = $1 AND worker_id = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, shiftID, workerID).Scan(&offerID, &offerStatus, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock shift offer: %w", err)
	}

	switch offerStatus {
	case db.OfferPending:
		// fall through to the expiry check
	case db.OfferExpired:
		return nil, db.ErrOfferExpired
	default:
		return nil, db.ErrAlreadyAssigned
	}

	if !now.Before(expiresAt) {
		// Expiry is checked live against the stored timestamp; the
		// status sweep is purely hygiene and happens here lazily.
		if _, err := tx.Exec(ctx, `UPDATE shift_offer SET status = 'expired' WHERE id = $1`, offerID); err != nil {
			return nil, fmt.Errorf("failed to expire shift offer: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, db.ErrOfferExpired
	}

	priorStatus := shift.DispatchStatus

	tag, err := tx.Exec(ctx, `
		UPDATE shift
		SET assigned_worker_id = $2, dispatch_status = 'none', updated_at = $3
		WHERE id = $1 AND status = 'accepted' AND dispatch_status = $4
	`, shiftID, workerID, now.UTC(), priorStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to reassign shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, db.ErrAlreadyAssigned
	}

	if _, err := tx.Exec(ctx, `UPDATE shift_offer SET status = 'accepted' WHERE id = $1`, offerID); err != nil {
		return nil, fmt.Errorf("failed to accept shift offer: %w", err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE shift_offer SET status = 'superseded'
		WHERE shift_id = $1 AND id <> $2 AND status = 'pending'
		RETURNING worker_id
	`, shiftID, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede shift offers: %w", err)
	}
	var superseded []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan superseded worker: %w", err)
		}
		superseded = append(superseded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating superseded offers: %w", err)
	}

	replaced := ""
	if shift.AssignedWorkerID != nil {
		replaced = *shift.AssignedWorkerID
	}
	if replaced != "" && replaced != workerID {
		_, err = tx.Exec(ctx, `
			INSERT INTO penalty (id, worker_id, shift_id, reason, created_at)
			VALUES ($1, $2, $3, 'no_show', $4)
		`, uuid.New().String(), replaced, shiftID, now.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to record no-show penalty: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dispatch_event (shift_id, from_status, to_status, occurred_at)
		VALUES ($1, $2, 'replacement_found', $3)
	`, shiftID, priorStatus, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record dispatch event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	shift.AssignedWorkerID = &workerID
	shift.DispatchStatus = db.DispatchNone
	shift.UpdatedAt = now.UTC()

	return &db.Acceptance{
		Shift:               *shift,
		WorkerID:            workerID,
		ReplacedWorkerID:    replaced,
		SupersededWorkerIDs: superseded,
	}, nil
}
