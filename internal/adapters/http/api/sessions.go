package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/types"
)

// SessionService drives measurement sessions.
type SessionService interface {
	StartSession(ctx context.Context, g scoring.Gender, player int) (types.SessionSnapshot, error)
	Session(ctx context.Context, id string) (types.SessionSnapshot, error)
	SubmitFrame(ctx context.Context, id string, seq int64, lm []pose.Landmark) (service.FrameStatus, error)
	FreezeSession(ctx context.Context, id string) (service.Frozen, error)
	EndSession(ctx context.Context, id string) error
}

// SessionsHandler handles the measurement session endpoints.
type SessionsHandler struct {
	svc SessionService
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

type startRequest struct {
	Gender string `json:"gender"`
	Player int    `json:"player"`
}

type frameRequest struct {
	Seq       int64           `json:"seq"`
	Landmarks []pose.Landmark `json:"landmarks"`
}

type frameResponse struct {
	Status string `json:"status"`
	Seq    int64  `json:"seq"`
}

// HandleStart handles POST /api/sessions. An empty body starts a male
// session for player 1.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("start session", ErrBadRequest, err))
		return
	}
	snap, err := h.svc.StartSession(r.Context(), scoring.Gender(req.Gender), req.Player)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleGet handles GET /api/sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleFrame handles POST /api/sessions/{id}/frames. Accepted frames are
// folded asynchronously; a repeated seq is acknowledged without effect.
func (h *SessionsHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("submit frame", ErrBadRequest, err))
		return
	}
	status, err := h.svc.SubmitFrame(r.Context(), chi.URLParam(r, "id"), req.Seq, req.Landmarks)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if status == service.FrameDuplicate {
		writeJSON(w, http.StatusOK, frameResponse{Status: "duplicate", Seq: req.Seq})
		return
	}
	writeJSON(w, http.StatusAccepted, frameResponse{Status: "accepted", Seq: req.Seq})
}

// HandleFreeze handles POST /api/sessions/{id}/freeze.
func (h *SessionsHandler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	frozen, err := h.svc.FreezeSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frozen)
}

// HandleEnd handles DELETE /api/sessions/{id}.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
