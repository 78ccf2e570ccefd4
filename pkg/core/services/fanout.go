package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

// Default expiry windows. Urgent replacement offers are tight so the
// next fanout round can recruit further afield; new-booking offers give
// workers hours to respond.
const (
	DefaultOfferTTL   = 60 * time.Second
	DefaultBookingTTL = 4 * time.Hour
)

// OfferWriter is the offer-store surface the fanout writes through.
type OfferWriter interface {
	ListShiftOffers(ctx context.Context, shiftID string) ([]db.ShiftOffer, error)
	CreateOffers(ctx context.Context, offers []db.ShiftOffer) (int, error)
	RefreshOffers(ctx context.Context, offerIDs []string, expiresAt time.Time) error
}

// FanoutResult summarises one fanout round. Offer and notification
// counts can legitimately differ when individual sends fail.
type FanoutResult struct {
	OffersCreated       int
	OffersReused        int
	OffersRefreshed     int
	NotificationsSent   int
	NotificationsFailed int
}

// FanOutOffers converts a candidate list into live, time-boxed offers
// and notifies each candidate. A candidate who already holds a live
// pending offer keeps it; a pending offer whose window lapsed is
// refreshed rather than duplicated. Notification failures are logged
// per candidate and never abort the rest of the fanout.
func FanOutOffers(ctx context.Context, store OfferWriter, notifier Notifier, logger *zap.Logger, shift *db.Shift, candidates []Candidate, ttl time.Duration, now time.Time) (*FanoutResult, error) {
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresAt := now.Add(ttl)

	existing, err := store.ListShiftOffers(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing offers: %w", err)
	}
	// Offers come back newest first; keep the latest pending one per worker.
	pendingByWorker := make(map[string]db.ShiftOffer)
	for _, o := range existing {
		if o.Status != db.OfferPending {
			continue
		}
		if _, ok := pendingByWorker[o.WorkerID]; !ok {
			pendingByWorker[o.WorkerID] = o
		}
	}

	result := &FanoutResult{}
	var newOffers []db.ShiftOffer
	var refreshIDs []string

	for _, c := range candidates {
		if prior, ok := pendingByWorker[c.Worker.ID]; ok {
			if prior.Live(now) {
				result.OffersReused++
			} else {
				refreshIDs = append(refreshIDs, prior.ID)
				result.OffersRefreshed++
			}
			continue
		}
		newOffers = append(newOffers, db.ShiftOffer{
			ID:            uuid.New().String(),
			ShiftID:       shift.ID,
			WorkerID:      c.Worker.ID,
			Status:        db.OfferPending,
			ExpiresAt:     expiresAt,
			HourlyRate:    shift.HourlyRate,
			StartTime:     shift.StartTime,
			EndTime:       shift.EndTime,
			VenueName:     shift.VenueName,
			DistanceMiles: c.DistanceMiles,
			CreatedAt:     now,
		})
	}

	if len(refreshIDs) > 0 {
		if err := store.RefreshOffers(ctx, refreshIDs, expiresAt); err != nil {
			return nil, fmt.Errorf("failed to refresh offers: %w", err)
		}
	}
	created, err := store.CreateOffers(ctx, newOffers)
	if err != nil {
		return nil, fmt.Errorf("failed to create offers: %w", err)
	}
	result.OffersCreated = created

	title := fmt.Sprintf("Shift available at %s", shift.VenueName)
	for _, c := range candidates {
		body := offerBody(shift, c.DistanceMiles)
		data := map[string]string{
			"type":       "shift_offer",
			"shift_id":   shift.ID,
			"expires_at": expiresAt.Format(time.RFC3339),
		}
		if err := notifier.Send(ctx, c.Worker.ID, title, body, data); err != nil {
			logger.Warn("Offer notification failed",
				zap.String("shift_id", shift.ID),
				zap.String("worker_id", c.Worker.ID),
				zap.Error(err))
			result.NotificationsFailed++
			continue
		}
		result.NotificationsSent++
	}

	logger.Info("Offer fanout complete",
		zap.String("shift_id", shift.ID),
		zap.Int("created", result.OffersCreated),
		zap.Int("reused", result.OffersReused),
		zap.Int("refreshed", result.OffersRefreshed),
		zap.Int("notified", result.NotificationsSent))

	return result, nil
}

// offerBody renders everything a worker needs to decide in one glance.
func offerBody(shift *db.Shift, distance *float64) string {
	body := fmt.Sprintf("%s–%s, $%.2f/hr",
		shift.StartTime.Local().Format("Mon 15:04"),
		shift.EndTime.Local().Format("15:04"),
		shift.HourlyRate)
	if distance != nil {
		body += fmt.Sprintf(", %.1f mi away", *distance)
	}
	return body
}
