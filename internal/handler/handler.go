// Package handler provides the HTTP API surface: result submission, the
// leaderboard read path, and the health check.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/model"
	"typing-test-backend/internal/repository"
	"typing-test-backend/internal/service"
)

// Submitter runs a result submission end to end.
type Submitter interface {
	Submit(ctx context.Context, uid string, result *model.Result) *service.SubmitResponse
}

// BoardReader serves the leaderboard read path.
type BoardReader interface {
	Get(ctx context.Context, mode string, mode2 int, boardType, requestingUID string) (*service.LeaderboardView, error)
}

// Pinger reports storage liveness.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// API bundles the HTTP handlers for the service.
type API struct {
	submitter      Submitter
	boards         BoardReader
	pinger         Pinger
	requestTimeout time.Duration
}

// NewAPI creates a new API instance.
func NewAPI(submitter Submitter, boards BoardReader, pinger Pinger, requestTimeout time.Duration) *API {
	if requestTimeout <= 0 {
		requestTimeout = 25 * time.Second
	}
	return &API{
		submitter:      submitter,
		boards:         boards,
		pinger:         pinger,
		requestTimeout: requestTimeout,
	}
}

// Router builds the chi router with all routes mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.requestTimeout))

	r.Get("/healthz", a.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/results", a.SubmitResult)
		r.Get("/leaderboards", a.GetLeaderboard)
	})
	return r
}

// submitRequest is the submission payload: the authenticated uid plus the
// raw test result.
type submitRequest struct {
	UID    string        `json:"uid"`
	Result *model.Result `json:"result"`
}

// SubmitResult handles POST /api/results. Domain failures are expressed
// through the result code in a 200 response; only transport-level problems
// produce an HTTP error status.
func (a *API) SubmitResult(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UID == "" {
		http.Error(w, "missing uid", http.StatusUnauthorized)
		return
	}

	resp := a.submitter.Submit(r.Context(), req.UID, req.Result)
	writeJSON(w, http.StatusOK, resp)
}

// GetLeaderboard handles GET /api/leaderboards?mode=time&mode2=60&type=global.
// The optional uid query parameter marks the requester's own entry.
func (a *API) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	boardType := q.Get("type")
	if boardType == "" {
		boardType = model.BoardTypeGlobal
	}
	mode2, err := strconv.Atoi(q.Get("mode2"))
	if err != nil || mode == "" {
		http.Error(w, "mode and mode2 are required", http.StatusBadRequest)
		return
	}
	if boardType != model.BoardTypeGlobal && boardType != model.BoardTypeDaily {
		http.Error(w, "unknown leaderboard type", http.StatusBadRequest)
		return
	}

	view, err := a.boards.Get(r.Context(), mode, mode2, boardType, q.Get("uid"))
	if errors.Is(err, repository.ErrLeaderboardNotFound) {
		http.Error(w, "leaderboard not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("mode", mode).Int("mode2", mode2).Msg("failed to load leaderboard")
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Health handles GET /healthz.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.pinger.HealthCheck(r.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
