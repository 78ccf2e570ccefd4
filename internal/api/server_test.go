package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/db"
)

// mockStore implements Store through overridable function fields;
// untouched operations return zero values.
type mockStore struct {
	getShiftFn       func(ctx context.Context, id string) (*db.Shift, error)
	acceptOfferFn    func(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error)
	recordLocationFn func(ctx context.Context, workerID string, pt geo.Point, at time.Time) error
}

func (m *mockStore) GetShift(ctx context.Context, id string) (*db.Shift, error) {
	if m.getShiftFn != nil {
		return m.getShiftFn(ctx, id)
	}
	return nil, db.ErrShiftNotFound
}

func (m *mockStore) TransitionDispatchStatus(ctx context.Context, shiftID string, from, to db.DispatchStatus, at time.Time) error {
	return nil
}

func (m *mockStore) ListShiftOffers(ctx context.Context, shiftID string) ([]db.ShiftOffer, error) {
	return nil, nil
}

func (m *mockStore) CreateOffers(ctx context.Context, offers []db.ShiftOffer) (int, error) {
	return len(offers), nil
}

func (m *mockStore) RefreshOffers(ctx context.Context, offerIDs []string, expiresAt time.Time) error {
	return nil
}

func (m *mockStore) ListRiskWindowShifts(ctx context.Context, from, to time.Time) ([]db.Shift, error) {
	return nil, nil
}

func (m *mockStore) AcceptOffer(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
	if m.acceptOfferFn != nil {
		return m.acceptOfferFn(ctx, shiftID, workerID, now)
	}
	return nil, db.ErrOfferNotFound
}

func (m *mockStore) RecordWorkerLocation(ctx context.Context, workerID string, pt geo.Point, at time.Time) error {
	if m.recordLocationFn != nil {
		return m.recordLocationFn(ctx, workerID, pt, at)
	}
	return nil
}

type mockWorkers struct {
	workers []db.Worker
}

func (m *mockWorkers) ListWorkers(ctx context.Context, tier db.CandidateTier) ([]db.Worker, error) {
	return m.workers, nil
}

func (m *mockWorkers) ListBookedWorkerIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	return nil, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, recipientID, title, body string, data map[string]string) error {
	return nil
}

func newTestServer(store *mockStore, workers *mockWorkers) *Server {
	if workers == nil {
		workers = &mockWorkers{}
	}
	return &Server{
		Store:    store,
		Workers:  workers,
		Notifier: noopNotifier{},
		Logger:   zap.NewNop(),
	}
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestServer(&mockStore{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleAcceptWin(t *testing.T) {
	store := &mockStore{
		acceptOfferFn: func(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
			return &db.Acceptance{
				Shift:    db.Shift{ID: shiftID, VenueName: "The Parish"},
				WorkerID: workerID,
			}, nil
		},
	}

	rec := doRequest(newTestServer(store, nil), http.MethodPost, "/api/shifts/shift-1/accept", `{"worker_id":"w-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["result"])
	assert.Equal(t, "w-1", body["worker_id"])
}

func TestHandleAcceptConflict(t *testing.T) {
	store := &mockStore{
		acceptOfferFn: func(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
			return nil, db.ErrAlreadyAssigned
		},
	}

	rec := doRequest(newTestServer(store, nil), http.MethodPost, "/api/shifts/shift-1/accept", `{"worker_id":"w-1"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body["result"])
}

func TestHandleAcceptExpiredOfferGone(t *testing.T) {
	store := &mockStore{
		acceptOfferFn: func(ctx context.Context, shiftID, workerID string, now time.Time) (*db.Acceptance, error) {
			return nil, db.ErrOfferExpired
		},
	}

	rec := doRequest(newTestServer(store, nil), http.MethodPost, "/api/shifts/shift-1/accept", `{"worker_id":"w-1"}`)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHandleAcceptUnknownOffer(t *testing.T) {
	rec := doRequest(newTestServer(&mockStore{}, nil), http.MethodPost, "/api/shifts/shift-1/accept", `{"worker_id":"w-1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAcceptRequiresWorkerID(t *testing.T) {
	rec := doRequest(newTestServer(&mockStore{}, nil), http.MethodPost, "/api/shifts/shift-1/accept", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCandidates(t *testing.T) {
	loc := &geo.Point{Lat: 30.2672, Lon: -97.7431}
	store := &mockStore{
		getShiftFn: func(ctx context.Context, id string) (*db.Shift, error) {
			return &db.Shift{ID: id, Status: db.ShiftAccepted, Location: loc}, nil
		},
	}
	workers := &mockWorkers{workers: []db.Worker{
		{ID: "w-1", FirstName: "Ana", Active: true, Available: true, Rating: 4.5,
			Location: &geo.Point{Lat: 30.2692, Lon: -97.7431}},
	}}

	rec := doRequest(newTestServer(store, workers), http.MethodGet, "/api/shifts/shift-1/candidates", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Tier       string `json:"tier"`
		Candidates []struct {
			WorkerID string  `json:"worker_id"`
			Name     string  `json:"name"`
			Rating   float64 `json:"rating"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "available", body.Tier)
	require.Len(t, body.Candidates, 1)
	assert.Equal(t, "w-1", body.Candidates[0].WorkerID)
	assert.Equal(t, "Ana", body.Candidates[0].Name)
}

func TestHandleGeoPing(t *testing.T) {
	var recorded geo.Point
	store := &mockStore{
		recordLocationFn: func(ctx context.Context, workerID string, pt geo.Point, at time.Time) error {
			recorded = pt
			return nil
		},
	}

	rec := doRequest(newTestServer(store, nil), http.MethodPost, "/api/geo", `{"worker_id":"w-1","lat":30.27,"lon":-97.74}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, geo.Point{Lat: 30.27, Lon: -97.74}, recorded)
}

func TestHandleGeoPingUnknownWorker(t *testing.T) {
	store := &mockStore{
		recordLocationFn: func(ctx context.Context, workerID string, pt geo.Point, at time.Time) error {
			return db.ErrWorkerNotFound
		},
	}

	rec := doRequest(newTestServer(store, nil), http.MethodPost, "/api/geo", `{"worker_id":"ghost","lat":1,"lon":2}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleScan(t *testing.T) {
	rec := doRequest(newTestServer(&mockStore{}, nil), http.MethodPost, "/api/dispatch/scan", `{"lookback_minutes":30}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Scanned int `json:"scanned"`
		Errors  int `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Scanned)
	assert.Zero(t, body.Errors)
}
