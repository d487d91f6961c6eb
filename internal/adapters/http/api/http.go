// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/combatpower/internal/adapters/images"
	"github.com/okian/combatpower/internal/adapters/repository"
	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/domain/battle"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/session"
	"github.com/okian/combatpower/internal/domain/types"
)

const maxBodyBytes = 8 << 20 // snapshots arrive as data URLs

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Compute(ctx context.Context, lm []pose.Landmark, g scoring.Gender) scoring.RawStats

	StartSession(ctx context.Context, g scoring.Gender, player int) (types.SessionSnapshot, error)
	Session(ctx context.Context, id string) (types.SessionSnapshot, error)
	SubmitFrame(ctx context.Context, id string, seq int64, lm []pose.Landmark) (service.FrameStatus, error)
	FreezeSession(ctx context.Context, id string) (service.Frozen, error)
	EndSession(ctx context.Context, id string) error

	SaveScore(ctx context.Context, req service.SaveRequest) (service.SaveResult, error)
	Ranking(ctx context.Context, limit int) ([]types.RankedEntry, error)
	Entry(ctx context.Context, id int64) (model.ScoreEntry, error)
	DeleteScores(ctx context.Context, ids []int64) (int, error)
	ClearAll(ctx context.Context) (int, error)
	ImagesDir() string

	ResolveBattle(ctx context.Context, p1, p2 battle.Player) (battle.Outcome, error)
	SaveBattleResult(ctx context.Context, r model.BattleResult) (model.BattleResult, error)
	BattleRanking(ctx context.Context) ([]model.BattleStanding, error)

	Stats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	health   *HealthHandler
	stats    *StatsHandler
	compute  *ComputeHandler
	sessions *SessionsHandler
	ranking  *RankingHandler
	battles  *BattlesHandler
	chart    *ChartHandler
	images   *ImagesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		health:   NewHealthHandler(),
		stats:    NewStatsHandler(deps),
		compute:  NewComputeHandler(deps),
		sessions: NewSessionsHandler(deps),
		ranking:  NewRankingHandler(deps),
		battles:  NewBattlesHandler(deps),
		chart:    NewChartHandler(deps),
		images:   NewImagesHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	r.Handle("/metrics", s.health.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.stats.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/compute", MetricsMiddleware(s.compute.HandleCompute, "compute"))

		r.Post("/sessions", MetricsMiddleware(s.sessions.HandleStart, "sessions"))
		r.Get("/sessions/{id}", MetricsMiddleware(s.sessions.HandleGet, "session"))
		r.Delete("/sessions/{id}", MetricsMiddleware(s.sessions.HandleEnd, "session"))
		r.Post("/sessions/{id}/frames", MetricsMiddleware(s.sessions.HandleFrame, "frames"))
		r.Post("/sessions/{id}/freeze", MetricsMiddleware(s.sessions.HandleFreeze, "freeze"))

		r.Post("/save_score", MetricsMiddleware(s.ranking.HandleSave, "save_score"))
		r.Get("/get_ranking", MetricsMiddleware(s.ranking.HandleGet, "get_ranking"))
		r.Get("/entries/{id}", MetricsMiddleware(s.ranking.HandleEntry, "entry"))
		r.Post("/delete_scores", MetricsMiddleware(s.ranking.HandleDelete, "delete_scores"))
		r.Post("/delete_score", MetricsMiddleware(s.ranking.HandleDelete, "delete_score"))
		r.Post("/clear_all", MetricsMiddleware(s.ranking.HandleClear, "clear_all"))

		r.Post("/battles/resolve", MetricsMiddleware(s.battles.HandleResolve, "battles_resolve"))
		r.Post("/save_battle_result", MetricsMiddleware(s.battles.HandleSave, "save_battle_result"))
		r.Get("/get_battle_ranking", MetricsMiddleware(s.battles.HandleRanking, "get_battle_ranking"))
	})

	r.Get("/ranking/chart", MetricsMiddleware(s.chart.HandleChart, "ranking_chart"))
	r.Get("/src/{file}", MetricsMiddleware(s.images.HandleImage, "images"))
}

// NewRouter returns a router with the shared middleware stack installed.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// resultResponse is the envelope of the ranking and battle write endpoints.
type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
	ID      int64  `json:"id,omitempty"`
	Rank    int    `json:"rank,omitempty"`
	Deleted *int   `json:"deleted,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure answers a write endpoint that failed, keeping its envelope.
func writeFailure(w http.ResponseWriter, err error, message string) {
	status, _ := classify(err)
	writeJSON(w, status, resultResponse{Success: false, Message: message})
}

// writeServiceError translates err to a status and an error body.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// classify maps service, session and store errors to HTTP statuses.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrSessionFrozen):
		return http.StatusConflict, "session_frozen"
	case errors.Is(err, service.ErrBackpressure), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrBadRequest),
		errors.Is(err, session.ErrInvalidPlayer),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidEntry),
		errors.Is(err, images.ErrInvalidImage):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
