package api

import (
	"context"
	"net/http"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
)

// Computer scores a single frame.
type Computer interface {
	Compute(ctx context.Context, lm []pose.Landmark, g scoring.Gender) scoring.RawStats
}

// ComputeHandler handles stateless scoring requests.
type ComputeHandler struct {
	computer Computer
}

// NewComputeHandler creates a new compute handler.
func NewComputeHandler(c Computer) *ComputeHandler {
	return &ComputeHandler{computer: c}
}

type computeRequest struct {
	Landmarks []pose.Landmark `json:"landmarks"`
	Gender    string          `json:"gender"`
}

// HandleCompute handles POST /api/compute. Frames without the full landmark
// layout score the baseline.
func (h *ComputeHandler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("compute", ErrBadRequest, err))
		return
	}
	g := scoring.Gender(req.Gender)
	if g == "" {
		g = scoring.Male
	}
	writeJSON(w, http.StatusOK, h.computer.Compute(r.Context(), req.Landmarks, g))
}
