package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/db"
)

// ListWorkers retrieves the worker pool at the given relaxation tier.
func (d *DB) ListWorkers(ctx context.Context, tier db.CandidateTier) ([]db.Worker, error) {
	query := `
		SELECT id, first_name, last_name, active, available, skills, rating,
		       last_lat, last_lon, located_at
		FROM worker`
	switch tier {
	case db.TierAvailable:
		query += ` WHERE active AND available`
	case db.TierActive:
		query += ` WHERE active`
	}

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []db.Worker
	for rows.Next() {
		var w db.Worker
		var lat, lon *float64
		if err := rows.Scan(
			&w.ID, &w.FirstName, &w.LastName, &w.Active, &w.Available,
			&w.Skills, &w.Rating, &lat, &lon, &w.LocatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		if lat != nil && lon != nil {
			w.Location = &geo.Point{Lat: *lat, Lon: *lon}
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workers: %w", err)
	}

	return workers, nil
}

// ListBookedWorkerIDs returns workers already committed to a shift
// overlapping (from, to). Overlap is strict: a shift ending exactly
// when the target starts does not conflict.
func (d *DB) ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT DISTINCT assigned_worker_id
		FROM shift
		WHERE assigned_worker_id IS NOT NULL
		  AND status IN ('pending', 'accepted', 'checked_in')
		  AND start_time < $2 AND end_time > $1
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query booked workers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan worker id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booked workers: %w", err)
	}

	return ids, nil
}

// RecordWorkerLocation persists a worker's latest location fix.
func (d *DB) RecordWorkerLocation(ctx context.Context, workerID string, pt geo.Point, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE worker SET last_lat = $2, last_lon = $3, located_at = $4
		WHERE id = $1
	`, workerID, pt.Lat, pt.Lon, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record worker location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrWorkerNotFound
	}
	return nil
}

// DeviceTokens returns the registered push tokens for a user.
func (d *DB) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT token FROM device_token WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}

	return tokens, nil
}
