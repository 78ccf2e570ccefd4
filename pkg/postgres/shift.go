package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/db"
)

const shiftColumns = `id, venue_id, venue_name, address, manager_id, lat, lon,
	start_time, end_time, hourly_rate, assigned_worker_id, status,
	dispatch_status, welfare_sent_at, created_at, updated_at`

func scanShift(row pgx.Row) (*db.Shift, error) {
	var s db.Shift
	var lat, lon *float64
	if err := row.Scan(
		&s.ID, &s.VenueID, &s.VenueName, &s.Address, &s.ManagerID, &lat, &lon,
		&s.StartTime, &s.EndTime, &s.HourlyRate, &s.AssignedWorkerID, &s.Status,
		&s.DispatchStatus, &s.WelfareSentAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		s.Location = &geo.Point{Lat: *lat, Lon: *lon}
	}
	return &s, nil
}

// GetShift retrieves a single shift by id
func (d *DB) GetShift(ctx context.Context, id string) (*db.Shift, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shift WHERE id = $1`, id)
	s, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shift: %w", err)
	}
	return s, nil
}

// ListRiskWindowShifts returns accepted shifts with an assigned worker
// whose start falls inside [from, to] and whose dispatch status still
// needs attention, most urgent first.
func (d *DB) ListRiskWindowShifts(ctx context.Context, from, to time.Time) ([]db.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift
		WHERE status = 'accepted'
		  AND dispatch_status IN ('none', 'welfare_sent', 'at_risk')
		  AND assigned_worker_id IS NOT NULL
		  AND start_time BETWEEN $1 AND $2
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk window shifts: %w", err)
	}
	defer rows.Close()

	var shifts []db.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

// TransitionDispatchStatus applies a compare-and-set dispatch-status
// update. The WHERE clause carries the expected prior status; if the
// row moved on concurrently no row matches and ErrStaleStatus is
// returned, so the caller never regresses the state machine.
func (d *DB) TransitionDispatchStatus(ctx context.Context, shiftID string, from, to db.DispatchStatus, at time.Time) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal dispatch transition %s -> %s", from, to)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE shift
		SET dispatch_status = $3,
		    welfare_sent_at = CASE WHEN $3 = 'welfare_sent' THEN $4 ELSE welfare_sent_at END,
		    updated_at = $4
		WHERE id = $1 AND dispatch_status = $2
	`, shiftID, from, to, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to update dispatch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing shift from a concurrent transition.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shift WHERE id = $1)`, shiftID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check shift existence: %w", err)
		}
		if !exists {
			return db.ErrShiftNotFound
		}
		return db.ErrStaleStatus
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dispatch_event (shift_id, from_status, to_status, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, shiftID, from, to, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record dispatch event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
