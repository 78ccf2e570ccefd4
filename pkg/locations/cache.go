package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/db"
)

const (
	keyPrefix = "worker:last:"
	fixTTL    = 5 * time.Minute
)

type cachedFix struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  time.Time `json:"at"`
}

// Cache keeps each worker's freshest location fix in Redis with a short
// TTL, so candidate search sees live positions between the slower
// durable writes.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Record stores a location fix for a worker.
func (c *Cache) Record(ctx context.Context, workerID string, pt geo.Point, at time.Time) error {
	data, err := json.Marshal(cachedFix{Lat: pt.Lat, Lon: pt.Lon, At: at.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal location fix: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+workerID, data, fixTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache location fix: %w", err)
	}
	return nil
}

// Overlay replaces each worker's stored location with a fresher cached
// fix when one exists. Cache misses and malformed entries are skipped.
func (c *Cache) Overlay(ctx context.Context, workers []db.Worker) error {
	if len(workers) == 0 {
		return nil
	}

	keys := make([]string, len(workers))
	for i, w := range workers {
		keys[i] = keyPrefix + w.ID
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to read cached fixes: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var fix cachedFix
		if err := json.Unmarshal([]byte(raw), &fix); err != nil {
			continue
		}
		if workers[i].LocatedAt != nil && workers[i].LocatedAt.After(fix.At) {
			continue
		}
		workers[i].Location = &geo.Point{Lat: fix.Lat, Lon: fix.Lon}
		at := fix.At
		workers[i].LocatedAt = &at
	}

	return nil
}

// Directory decorates a worker store so candidate search reads
// cache-fresh locations. Redis trouble degrades to the durable
// positions rather than failing the search.
type Directory struct {
	Inner  db.WorkerStore
	Cache  *Cache
	Logger *zap.Logger
}

func (d *Directory) ListWorkers(ctx context.Context, tier db.CandidateTier) ([]db.Worker, error) {
	workers, err := d.Inner.ListWorkers(ctx, tier)
	if err != nil {
		return nil, err
	}
	if d.Cache != nil {
		if err := d.Cache.Overlay(ctx, workers); err != nil {
			d.Logger.Warn("Location cache overlay failed", zap.Error(err))
		}
	}
	return workers, nil
}

func (d *Directory) ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	return d.Inner.ListBookedWorkerIDs(ctx, from, to)
}
