// ABOUTME: JSON HTTP surface for tracking events and reading results
// ABOUTME: Registers /api/experiments routes plus a health endpoint

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/growthtools/abtrack/internal/scope"
	"github.com/growthtools/abtrack/internal/stats"
	"github.com/growthtools/abtrack/internal/store"
	"github.com/growthtools/abtrack/internal/tracking"
)

// Server exposes the tracking and reporting endpoints.
type Server struct {
	tracker  *tracking.Tracker
	counters store.CounterStore
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(tracker *tracking.Tracker, counters store.CounterStore) *Server {
	return &Server{
		tracker:  tracker,
		counters: counters,
		logger:   slog.Default().With("component", "api"),
	}
}

// Register attaches all API routes to the mux. The scope middleware must wrap
// the mux (or these routes) for anonymous visitors to be tracked.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/experiments/{name}/view", s.handleView)
	mux.HandleFunc("POST /api/experiments/{name}/conversion", s.handleConversion)
	mux.HandleFunc("GET /api/experiments", s.handleList)
	mux.HandleFunc("GET /api/experiments/{name}/significance", s.handleSignificance)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// trackRequest is the optional body for tracking endpoints. A caller acting
// on behalf of a known user may override the request's own scope, and a view
// may carry the variant the caller already rendered.
type trackRequest struct {
	UserID  string `json:"user_id"`
	Token   string `json:"token"`
	Variant string `json:"variant"`
}

func (r trackRequest) scope() scope.Scope {
	switch {
	case r.UserID != "":
		return scope.User(r.UserID)
	case r.Token != "":
		return scope.Token(r.Token)
	default:
		return scope.Scope{}
	}
}

// handleView accepts a view event. Always 202: the tracker is
// fire-and-forget, so the caller has nothing to retry on.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	experiment := r.PathValue("name")
	if experiment == "" {
		writeError(w, http.StatusBadRequest, "experiment name required")
		return
	}

	req, ok := s.readTrackRequest(w, r)
	if !ok {
		return
	}

	s.tracker.TrackView(r.Context(), experiment, req.scope(), req.Variant)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleConversion accepts a conversion event. kind defaults to primary.
func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	experiment := r.PathValue("name")
	if experiment == "" {
		writeError(w, http.StatusBadRequest, "experiment name required")
		return
	}

	kind := store.ConversionKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = store.ConversionPrimary
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be primary or secondary")
		return
	}

	req, ok := s.readTrackRequest(w, r)
	if !ok {
		return
	}

	s.tracker.TrackConversion(r.Context(), experiment, kind, req.scope())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// variantPayload mirrors one counter row on the wire.
type variantPayload struct {
	Variant              string `json:"variant"`
	TotalViews           int64  `json:"total_views"`
	Conversions          int64  `json:"conversions"`
	SecondaryConversions int64  `json:"secondary_conversions"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

type experimentPayload struct {
	Name     string           `json:"name"`
	Variants []variantPayload `json:"variants"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	groups, err := s.counters.ListExperiments(r.Context())
	if err != nil {
		s.logger.Error("listing experiments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing experiments failed")
		return
	}

	payload := make([]experimentPayload, 0, len(groups))
	for _, group := range groups {
		exp := experimentPayload{Name: group.Name, Variants: make([]variantPayload, 0, len(group.Variants))}
		for _, row := range group.Variants {
			exp.Variants = append(exp.Variants, variantPayload{
				Variant:              row.Variant,
				TotalViews:           row.TotalViews,
				Conversions:          row.Conversions,
				SecondaryConversions: row.SecondaryConversions,
				CreatedAt:            row.CreatedAt.Format(time.RFC3339),
				UpdatedAt:            row.UpdatedAt.Format(time.RFC3339),
			})
		}
		payload = append(payload, exp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": payload})
}

func (s *Server) handleSignificance(w http.ResponseWriter, r *http.Request) {
	experiment := r.PathValue("name")

	rows, err := s.counters.ListVariants(r.Context(), experiment)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("loading experiment failed", "experiment", experiment, "error", err)
		writeError(w, http.StatusInternalServerError, "loading experiment failed")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}

	writeJSON(w, http.StatusOK, stats.Calculate(rows))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readTrackRequest parses the optional JSON body of a tracking call. An empty
// body is fine; malformed JSON is the caller's bug and gets a 400.
func (s *Server) readTrackRequest(w http.ResponseWriter, r *http.Request) (trackRequest, bool) {
	var req trackRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
