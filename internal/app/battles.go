package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/combatpower/internal/domain/battle"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

// ResolveBattle applies the click penalty and decides the winner. Nothing is stored.
func (s *Service) ResolveBattle(_ context.Context, p1, p2 battle.Player) (battle.Outcome, error) {
	if p1.Score < 0 || p2.Score < 0 || p1.Clicks < 0 || p2.Clicks < 0 {
		return battle.Outcome{}, fmt.Errorf("resolve battle: %w: scores and clicks must not be negative", ErrBadRequest)
	}
	return s.Config().Battle.Resolve(p1, p2), nil
}

// SaveBattleResult stores a resolved battle.
func (s *Service) SaveBattleResult(ctx context.Context, r model.BattleResult) (model.BattleResult, error) { //nolint:gocritic // hugeParam
	_, repo, err := s.running()
	if err != nil {
		return model.BattleResult{}, err
	}
	if strings.TrimSpace(r.Player1Name) == "" || strings.TrimSpace(r.Player2Name) == "" || strings.TrimSpace(r.Winner) == "" {
		return model.BattleResult{}, fmt.Errorf("save battle: %w: names and winner are required", ErrBadRequest)
	}
	if r.Player1FinalScore < 0 || r.Player2FinalScore < 0 {
		return model.BattleResult{}, fmt.Errorf("save battle: %w: final scores must not be negative", ErrBadRequest)
	}

	saved, err := repo.SaveBattle(ctx, r)
	if err != nil {
		return model.BattleResult{}, fmt.Errorf("save battle: %w", err)
	}
	outcome := "win"
	if saved.Winner == s.Config().Battle.DrawLabel {
		outcome = "draw"
	}
	metrics.RecordBattle(outcome)
	s.logger.Info(ctx, "battle saved",
		logger.Int64("id", saved.ID),
		logger.String("winner", saved.Winner),
	)
	return saved, nil
}

// BattleRanking returns win counts per winner, draws excluded.
func (s *Service) BattleRanking(ctx context.Context) ([]model.BattleStanding, error) {
	_, repo, err := s.running()
	if err != nil {
		return nil, err
	}
	results, err := repo.Battles(ctx)
	if err != nil {
		return nil, fmt.Errorf("battle ranking: %w", err)
	}
	cfg := s.Config()
	return cfg.Battle.Standings(results, cfg.BattleRankingLimit), nil
}
