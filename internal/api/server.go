package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/core/geo"
	"github.com/covershift/dispatch/pkg/core/services"
	"github.com/covershift/dispatch/pkg/db"
	"github.com/covershift/dispatch/pkg/locations"
)

// Store is the database surface the HTTP handlers need.
type Store interface {
	services.WatchdogStore
	services.AcceptStore
	RecordWorkerLocation(ctx context.Context, workerID string, pt geo.Point, at time.Time) error
}

// Server exposes the dispatcher's narrow request/response operations
// over HTTP. Authentication and the wider CRUD surface live elsewhere;
// this is the accept/check/scan trigger surface plus the mobile app's
// geo ping.
type Server struct {
	Store     Store
	Workers   services.CandidateStore
	Notifier  services.Notifier
	Locations *locations.Cache
	Logger    *zap.Logger

	Lookback      time.Duration
	Check         services.CheckOptions
	BookingRadius float64
	BookingTTL    time.Duration
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/geo", s.handleGeoPing)
	r.Post("/api/dispatch/scan", s.handleScan)
	r.Route("/api/shifts/{shiftID}", func(r chi.Router) {
		r.Post("/accept", s.handleAccept)
		r.Post("/check", s.handleCheck)
		r.Post("/offers", s.handleOfferFanout)
		r.Get("/candidates", s.handleCandidates)
	})

	return r
}

type acceptRequest struct {
	WorkerID string `json:"worker_id"`
}

// handleAccept is the acceptance endpoint workers race against. The
// loser of the race gets 409 with a definitive message, never an
// ambiguous retry-able state.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkerID == "" {
		respondWithError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	result, err := services.AcceptReplacement(r.Context(), s.Store, s.Notifier, s.Logger, shiftID, req.WorkerID, time.Time{})
	if err != nil {
		if errors.Is(err, db.ErrShiftNotFound) || errors.Is(err, db.ErrOfferNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		s.Logger.Error("Acceptance failed", zap.String("shift_id", shiftID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "acceptance failed")
		return
	}

	switch result.Outcome {
	case services.AcceptWin:
		respondWithJSON(w, http.StatusOK, map[string]string{
			"result":    string(result.Outcome),
			"shift_id":  shiftID,
			"worker_id": req.WorkerID,
		})
	case services.AcceptConflict:
		respondWithJSON(w, http.StatusConflict, map[string]string{
			"result": string(result.Outcome),
			"reason": result.Reason,
		})
	default:
		respondWithJSON(w, http.StatusGone, map[string]string{
			"result": string(result.Outcome),
			"reason": result.Reason,
		})
	}
}

// handleCheck runs the guard status checker for one shift.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	result, err := services.CheckGuardStatus(r.Context(), s.Store, s.Workers, s.Notifier, s.Logger, shiftID, s.Check)
	if err != nil {
		if errors.Is(err, db.ErrShiftNotFound) {
			respondWithError(w, http.StatusNotFound, "shift not found")
			return
		}
		s.Logger.Error("Shift check failed", zap.String("shift_id", shiftID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "check failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"shift_id":   result.ShiftID,
		"outcome":    result.Outcome,
		"candidates": result.Candidates,
	})
}

type scanRequest struct {
	LookbackMinutes  int `json:"lookback_minutes"`
	LookaheadMinutes int `json:"lookahead_minutes"`
}

// handleScan triggers one watchdog pass; the managed cron hits this.
// Window overrides exist for testing.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	opts := services.ScanOptions{Lookback: s.Lookback, Check: s.Check}

	if r.Body != nil {
		var req scanRequest
		// An empty body is fine; overrides are optional.
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if req.LookbackMinutes > 0 {
				opts.Lookback = time.Duration(req.LookbackMinutes) * time.Minute
			}
			if req.LookaheadMinutes > 0 {
				opts.Check.Lookahead = time.Duration(req.LookaheadMinutes) * time.Minute
			}
		}
	}

	summary, err := services.RunWatchdog(r.Context(), s.Store, s.Workers, s.Notifier, s.Logger, opts)
	if err != nil {
		s.Logger.Error("Watchdog scan failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"scanned":    summary.Scanned,
		"outcomes":   summary.Outcomes,
		"errors":     summary.Errors,
		"elapsed_ms": summary.Elapsed.Milliseconds(),
	})
}

type offerFanoutRequest struct {
	RadiusMiles float64 `json:"radius_miles"`
	TTLMinutes  int     `json:"ttl_minutes"`
}

// handleOfferFanout runs the proactive wide-radius fanout for a newly
// booked shift.
func (s *Server) handleOfferFanout(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	opts := services.OfferOptions{RadiusMiles: s.BookingRadius, TTL: s.BookingTTL}
	if r.Body != nil {
		var req offerFanoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if req.RadiusMiles > 0 {
				opts.RadiusMiles = req.RadiusMiles
			}
			if req.TTLMinutes > 0 {
				opts.TTL = time.Duration(req.TTLMinutes) * time.Minute
			}
		}
	}

	result, err := services.OfferShift(r.Context(), s.Store, s.Workers, s.Notifier, s.Logger, shiftID, opts)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrShiftNotFound):
			respondWithError(w, http.StatusNotFound, "shift not found")
		case errors.Is(err, db.ErrShiftClosed):
			respondWithError(w, http.StatusConflict, "shift is not open for offers")
		default:
			s.Logger.Error("Offer fanout failed", zap.String("shift_id", shiftID), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "fanout failed")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"shift_id":   result.ShiftID,
		"candidates": result.Candidates,
		"tier":       result.Tier.String(),
	})
}

// handleCandidates previews the ranked candidate list for a shift.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	shift, err := s.Store.GetShift(r.Context(), shiftID)
	if err != nil {
		if errors.Is(err, db.ErrShiftNotFound) {
			respondWithError(w, http.StatusNotFound, "shift not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	set, err := services.LocateCandidates(r.Context(), s.Workers, s.Logger, shift, services.LocateOptions{
		RadiusMiles:   s.Check.RadiusMiles,
		MaxCandidates: s.Check.MaxCandidates,
	})
	if err != nil {
		s.Logger.Error("Candidate search failed", zap.String("shift_id", shiftID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "candidate search failed")
		return
	}

	type candidateView struct {
		WorkerID      string   `json:"worker_id"`
		Name          string   `json:"name"`
		Rating        float64  `json:"rating"`
		DistanceMiles *float64 `json:"distance_miles,omitempty"`
	}
	views := make([]candidateView, 0, len(set.Candidates))
	for _, c := range set.Candidates {
		views = append(views, candidateView{
			WorkerID:      c.Worker.ID,
			Name:          c.Worker.DisplayName(),
			Rating:        c.Worker.Rating,
			DistanceMiles: c.DistanceMiles,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"shift_id":   shiftID,
		"tier":       set.Tier.String(),
		"candidates": views,
	})
}

type geoPingRequest struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// handleGeoPing records a worker location fix from the mobile app,
// durably and in the hot cache.
func (s *Server) handleGeoPing(w http.ResponseWriter, r *http.Request) {
	var req geoPingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkerID == "" {
		respondWithError(w, http.StatusBadRequest, "worker_id, lat and lon are required")
		return
	}

	now := time.Now().UTC()
	pt := geo.Point{Lat: req.Lat, Lon: req.Lon}

	if err := s.Store.RecordWorkerLocation(r.Context(), req.WorkerID, pt, now); err != nil {
		if errors.Is(err, db.ErrWorkerNotFound) {
			respondWithError(w, http.StatusNotFound, "unknown worker")
			return
		}
		s.Logger.Error("Failed to record location", zap.String("worker_id", req.WorkerID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to record location")
		return
	}

	if s.Locations != nil {
		if err := s.Locations.Record(r.Context(), req.WorkerID, pt, now); err != nil {
			s.Logger.Warn("Location cache write failed", zap.String("worker_id", req.WorkerID), zap.Error(err))
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
