package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covershift/dispatch/pkg/db"
)

// fakeStore is an in-memory store mirroring the semantics of the
// postgres implementation, including the conditional dispatch-status
// update and the atomic acceptance. Shared by the service tests.
type fakeStore struct {
	mu sync.Mutex

	shifts   map[string]*db.Shift
	offers   []db.ShiftOffer
	workers  []db.Worker
	bookings []booking
	events   []db.DispatchEvent
	penalty  []db.Penalty

	getShiftErr map[string]error
	listErr     error
}

type booking struct {
	workerID   string
	start, end time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shifts:      make(map[string]*db.Shift),
		getShiftErr: make(map[string]error),
	}
}

func (f *fakeStore) addShift(s db.Shift) {
	f.shifts[s.ID] = &s
}

func (f *fakeStore) shift(id string) db.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.shifts[id]
}

func (f *fakeStore) GetShift(ctx context.Context, id string) (*db.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getShiftErr[id]; err != nil {
		return nil, err
	}
	s, ok := f.shifts[id]
	if !ok {
		return nil, db.ErrShiftNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) ListRiskWindowShifts(ctx context.Context, from, to time.Time) ([]db.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []db.Shift
	for _, s := range f.shifts {
		if s.Status != db.ShiftAccepted || s.AssignedWorkerID == nil {
			continue
		}
		switch s.DispatchStatus {
		case db.DispatchNone, db.DispatchWelfareSent, db.DispatchAtRisk:
		default:
			continue
		}
		if s.StartTime.Before(from) || s.StartTime.After(to) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) TransitionDispatchStatus(ctx context.Context, shiftID string, from, to db.DispatchStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shifts[shiftID]
	if !ok {
		return db.ErrShiftNotFound
	}
	if s.DispatchStatus != from {
		return db.ErrStaleStatus
	}
	s.DispatchStatus = to
	if to == db.DispatchWelfareSent {
		t := at
		s.WelfareSentAt = &t
	}
	f.events = append(f.events, db.DispatchEvent{ShiftID: shiftID, FromStatus: from, ToStatus: to, OccurredAt: at})
	return nil
}

func (f *fakeStore) ListShiftOffers(ctx context.Context, shiftID string) ([]db.ShiftOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.ShiftOffer
	for _, o := range f.offers {
		if o.ShiftID == shiftID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CreateOffers(ctx context.Context, offers []db.ShiftOffer) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := 0
	for _, o := range offers {
		exists := false
		for _, prior := range f.offers {
			if prior.ShiftID == o.ShiftID && prior.WorkerID == o.WorkerID && prior.Status == db.OfferPending {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		f.offers = append(f.offers, o)
		created++
	}
	return created, nil
}

func (f *fakeStore) RefreshOffers(ctx context.Context, offerIDs []string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]bool, len(offerIDs))
	for _, id := range offerIDs {
		ids[id] = true
	}
	for i := range f.offers {
		if ids[f.offers[i].ID] && f.offers[i].Status == db.OfferPending {
			f.offers[i].ExpiresAt = expiresAt
		}
	}
	return nil
}

func (f *fakeStore) AcceptOffer(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.shifts[shiftID]
	if !ok {
		return nil, db.ErrShiftNotFound
	}
	if s.Status != db.ShiftAccepted {
		return nil, db.ErrShiftClosed
	}
	if s.DispatchStatus != db.DispatchWelfareSent && s.DispatchStatus != db.DispatchAtRisk {
		return nil, db.ErrAlreadyAssigned
	}

	var offer *db.ShiftOffer
	for i := range f.offers {
		o := &f.offers[i]
		if o.ShiftID == shiftID && o.WorkerID == workerID {
			if offer == nil || o.CreatedAt.After(offer.CreatedAt) {
				offer = o
			}
		}
	}
	if offer == nil {
		return nil, db.ErrOfferNotFound
	}
	switch offer.Status {
	case db.OfferPending:
	case db.OfferExpired:
		return nil, db.ErrOfferExpired
	default:
		return nil, db.ErrAlreadyAssigned
	}
	if !now.Before(offer.ExpiresAt) {
		offer.Status = db.OfferExpired
		return nil, db.ErrOfferExpired
	}

	prior := s.DispatchStatus
	replaced := ""
	if s.AssignedWorkerID != nil {
		replaced = *s.AssignedWorkerID
	}

	s.AssignedWorkerID = &workerID
	s.DispatchStatus = db.DispatchNone
	s.UpdatedAt = now
	offer.Status = db.OfferAccepted

	var superseded []string
	for i := range f.offers {
		o := &f.offers[i]
		if o.ShiftID == shiftID && o.ID != offer.ID && o.Status == db.OfferPending {
			o.Status = db.OfferSuperseded
			superseded = append(superseded, o.WorkerID)
		}
	}

	if replaced != "" && replaced != workerID {
		f.penalty = append(f.penalty, db.Penalty{
			ID: uuid.New().String(), WorkerID: replaced, ShiftID: shiftID,
			Reason: "no_show", CreatedAt: now,
		})
	}
	f.events = append(f.events, db.DispatchEvent{ShiftID: shiftID, FromStatus: prior, ToStatus: db.DispatchReplacementFound, OccurredAt: now})

	return &db.Acceptance{
		Shift:               *s,
		WorkerID:            workerID,
		ReplacedWorkerID:    replaced,
		SupersededWorkerIDs: superseded,
	}, nil
}

func (f *fakeStore) ListWorkers(ctx context.Context, tier db.CandidateTier) ([]db.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Worker
	for _, w := range f.workers {
		switch tier {
		case db.TierAvailable:
			if !w.Active || !w.Available {
				continue
			}
		case db.TierActive:
			if !w.Active {
				continue
			}
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeStore) ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.bookings {
		if b.start.Before(to) && b.end.After(from) {
			out = append(out, b.workerID)
		}
	}
	return out, nil
}

// sentNotification records one Notifier.Send call.
type sentNotification struct {
	RecipientID string
	Title       string
	Body        string
	Data        map[string]string
}

// recordingNotifier captures sends and can fail selected recipients.
type recordingNotifier struct {
	mu      sync.Mutex
	sends   []sentNotification
	failFor map[string]error
}

func (n *recordingNotifier) Send(ctx context.Context, recipientID, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[recipientID]; ok {
		return err
	}
	n.sends = append(n.sends, sentNotification{RecipientID: recipientID, Title: title, Body: body, Data: data})
	return nil
}

func (n *recordingNotifier) sentTo(recipientID string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sends {
		if s.RecipientID == recipientID {
			out = append(out, s)
		}
	}
	return out
}
