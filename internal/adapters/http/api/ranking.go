package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/internal/domain/types"
)

// Messages of the ranking write endpoints.
const (
	msgSaved         = "スコアを保存しました！"
	msgSaveMissing   = "名前またはスコアがありません。"
	msgSaveFailed    = "スコアの保存に失敗しました。"
	msgDeleted       = "選択されたデータを削除しました。"
	msgDeleteMissing = "削除対象のIDがありません。"
	msgDeleteFailed  = "削除に失敗しました。"
	msgCleared       = "すべてのデータを削除しました。"
)

// RankingService stores and lists ranking entries.
type RankingService interface {
	SaveScore(ctx context.Context, req service.SaveRequest) (service.SaveResult, error)
	Ranking(ctx context.Context, limit int) ([]types.RankedEntry, error)
	Entry(ctx context.Context, id int64) (model.ScoreEntry, error)
	DeleteScores(ctx context.Context, ids []int64) (int, error)
	ClearAll(ctx context.Context) (int, error)
}

// RankingHandler handles the ranking endpoints.
type RankingHandler struct {
	svc RankingService
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(svc RankingService) *RankingHandler {
	return &RankingHandler{svc: svc}
}

type saveRequest struct {
	Name      string          `json:"name"`
	Score     *int            `json:"score"`
	Image     string          `json:"image"`
	Stats     json.RawMessage `json:"stats"`
	RequestID string          `json:"request_id"`
}

// entryID accepts both 12 and "12".
type entryID int64

func (id *entryID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = entryID(n)
	return nil
}

// deleteRequest carries a list of ids, or a single id for the one-entry
// delete_score route.
type deleteRequest struct {
	IDs []entryID `json:"ids"`
	ID  *entryID  `json:"id"`
}

func (d deleteRequest) ids() []int64 {
	ids := make([]int64, 0, len(d.IDs)+1)
	for _, id := range d.IDs {
		ids = append(ids, int64(id))
	}
	if d.ID != nil {
		ids = append(ids, int64(*d.ID))
	}
	return ids
}

// HandleSave handles POST /api/save_score.
func (h *RankingHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decode(w, r, &req, false); err != nil || req.Score == nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: msgSaveMissing})
		return
	}
	res, err := h.svc.SaveScore(r.Context(), service.SaveRequest{
		Name:      req.Name,
		Score:     *req.Score,
		Image:     req.Image,
		Stats:     req.Stats,
		RequestID: req.RequestID,
	})
	if err != nil {
		writeFailure(w, err, msgSaveFailed)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resultResponse{Success: true, Message: msgSaved, ID: res.ID, Image: res.Image, Rank: res.Rank})
}

// HandleGet handles GET /api/get_ranking?limit=N.
func (h *RankingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("get ranking", ErrBadRequest, err))
		return
	}
	entries, err := h.svc.Ranking(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleEntry handles GET /api/entries/{id}.
func (h *RankingHandler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("entry", ErrBadRequest, err))
		return
	}
	e, err := h.svc.Entry(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleDelete handles POST /api/delete_scores ({"ids": [...]}) and
// POST /api/delete_score ({"id": n}).
func (h *RankingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decode(w, r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: msgDeleteMissing})
		return
	}
	ids := req.ids()
	if len(ids) == 0 {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: msgDeleteMissing})
		return
	}
	n, err := h.svc.DeleteScores(r.Context(), ids)
	if err != nil {
		writeFailure(w, err, msgDeleteFailed)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Message: msgDeleted, Deleted: &n})
}

// HandleClear handles POST /api/clear_all.
func (h *RankingHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearAll(r.Context())
	if err != nil {
		writeFailure(w, err, msgDeleteFailed)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Message: msgCleared, Deleted: &n})
}
