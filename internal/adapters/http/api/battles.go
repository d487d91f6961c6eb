package api

import (
	"context"
	"net/http"

	"github.com/okian/combatpower/internal/domain/battle"
	"github.com/okian/combatpower/internal/domain/model"
)

// Messages of the battle write endpoint.
const (
	msgBattleSaved      = "バトル結果を保存しました。"
	msgBattleIncomplete = "バトルデータが不完全です。"
	msgBattleFailed     = "バトル結果の保存に失敗しました: "
)

// BattleService resolves and stores click battles.
type BattleService interface {
	ResolveBattle(ctx context.Context, p1, p2 battle.Player) (battle.Outcome, error)
	SaveBattleResult(ctx context.Context, r model.BattleResult) (model.BattleResult, error)
	BattleRanking(ctx context.Context) ([]model.BattleStanding, error)
}

// BattlesHandler handles the battle endpoints.
type BattlesHandler struct {
	svc BattleService
}

// NewBattlesHandler creates a new battles handler.
func NewBattlesHandler(svc BattleService) *BattlesHandler {
	return &BattlesHandler{svc: svc}
}

type resolveRequest struct {
	Player1 battle.Player `json:"player1"`
	Player2 battle.Player `json:"player2"`
}

// battleRequest mirrors model.BattleResult with every field required.
type battleRequest struct {
	Player1Name       *string `json:"player1_name"`
	Player1Score      *int    `json:"player1_score"`
	Player1Clicks     *int    `json:"player1_clicks"`
	Player1FinalScore *int    `json:"player1_final_score"`
	Player2Name       *string `json:"player2_name"`
	Player2Score      *int    `json:"player2_score"`
	Player2Clicks     *int    `json:"player2_clicks"`
	Player2FinalScore *int    `json:"player2_final_score"`
	Winner            *string `json:"winner"`
}

func (b *battleRequest) result() (model.BattleResult, bool) {
	if b.Player1Name == nil || b.Player1Score == nil || b.Player1Clicks == nil || b.Player1FinalScore == nil ||
		b.Player2Name == nil || b.Player2Score == nil || b.Player2Clicks == nil || b.Player2FinalScore == nil ||
		b.Winner == nil {
		return model.BattleResult{}, false
	}
	return model.BattleResult{
		Player1Name:       *b.Player1Name,
		Player1Score:      *b.Player1Score,
		Player1Clicks:     *b.Player1Clicks,
		Player1FinalScore: *b.Player1FinalScore,
		Player2Name:       *b.Player2Name,
		Player2Score:      *b.Player2Score,
		Player2Clicks:     *b.Player2Clicks,
		Player2FinalScore: *b.Player2FinalScore,
		Winner:            *b.Winner,
	}, true
}

// HandleResolve handles POST /api/battles/resolve.
func (h *BattlesHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("resolve battle", ErrBadRequest, err))
		return
	}
	out, err := h.svc.ResolveBattle(r.Context(), req.Player1, req.Player2)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSave handles POST /api/save_battle_result.
func (h *BattlesHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req battleRequest
	if err := decode(w, r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: msgBattleIncomplete})
		return
	}
	res, ok := req.result()
	if !ok {
		writeJSON(w, http.StatusBadRequest, resultResponse{Message: msgBattleIncomplete})
		return
	}
	saved, err := h.svc.SaveBattleResult(r.Context(), res)
	if err != nil {
		writeFailure(w, err, msgBattleFailed+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, resultResponse{Success: true, Message: msgBattleSaved, ID: saved.ID})
}

// HandleRanking handles GET /api/get_battle_ranking.
func (h *BattlesHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	standings, err := h.svc.BattleRanking(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}
