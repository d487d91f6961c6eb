package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/combatpower/internal/adapters/images"
	"github.com/okian/combatpower/internal/adapters/repository"
	"github.com/okian/combatpower/internal/domain/dedupe"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/internal/domain/types"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

// DefaultPlayerName is stored when a score is saved without a name.
const DefaultPlayerName = "PLAYER"

// SaveRequest is a score submitted at the end of a measurement.
type SaveRequest struct {
	Name      string          `json:"name"`
	Score     int             `json:"score"`
	Image     string          `json:"image,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// SaveResult describes a stored score.
type SaveResult struct {
	ID        int64  `json:"id"`
	Image     string `json:"image,omitempty"`
	Rank      int    `json:"rank"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// SaveScore stores a ranking entry. A data: URL image is written to the
// image directory; an image that cannot be stored is dropped with a warning
// and the score is saved anyway. Requests repeating a RequestID return the
// first result; a repeat that arrives while the first is still being stored
// waits for it and shares its outcome, failure included.
func (s *Service) SaveScore(ctx context.Context, req SaveRequest) (SaveResult, error) {
	_, repo, err := s.running()
	if err != nil {
		return SaveResult{}, err
	}
	if req.Score < 0 {
		return SaveResult{}, fmt.Errorf("save score: %w: score must not be negative", ErrBadRequest)
	}
	if len(req.Stats) > 0 && !json.Valid(req.Stats) {
		return SaveResult{}, fmt.Errorf("save score: %w: stats is not JSON", ErrBadRequest)
	}
	if req.RequestID == "" {
		return s.saveScore(ctx, repo, req)
	}

	key := dedupe.SaveKey(req.RequestID)
	if res, ok := s.savedResult(key); ok {
		return res, nil
	}
	leader := false
	v, err, _ := s.saves.Do(key, func() (any, error) {
		leader = true
		if res, ok := s.savedResult(key); ok {
			return res, nil
		}
		res, err := s.saveScore(ctx, repo, req)
		if err != nil {
			return SaveResult{}, err
		}
		s.saved.Store(key, res)
		s.deduper.SeenAndRecord(ctx, key)
		return res, nil
	})
	if err != nil {
		return SaveResult{}, err
	}
	res := v.(SaveResult)
	if !leader {
		res.Duplicate = true
	}
	return res, nil
}

// savedResult returns the cached outcome of an earlier save with key.
func (s *Service) savedResult(key string) (SaveResult, bool) {
	prev, ok := s.saved.Load(key)
	if !ok {
		return SaveResult{}, false
	}
	res := prev.(SaveResult)
	res.Duplicate = true
	return res, true
}

func (s *Service) saveScore(ctx context.Context, repo repository.Store, req SaveRequest) (SaveResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultPlayerName
	}
	entry := model.ScoreEntry{Name: name, Score: req.Score, Stats: req.Stats, Image: req.Image}
	if images.IsDataURL(req.Image) {
		entry.Image = s.storeImage(ctx, name, req.Image)
	}

	saved, err := repo.Save(ctx, entry)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save score: %w", err)
	}
	pos, err := repo.Position(ctx, saved.ID)
	if err != nil {
		s.logger.Warn(ctx, "position lookup failed", logger.Int64("id", saved.ID), logger.Error(err))
	}

	metrics.RecordScoreSaved()
	metrics.UpdateRankingEntries(repo.Count(ctx))
	s.logger.Info(ctx, "score saved",
		logger.Int64("id", saved.ID),
		logger.String("name", saved.Name),
		logger.Int("score", saved.Score),
		logger.Int("rank", pos),
	)
	return SaveResult{ID: saved.ID, Image: saved.Image, Rank: pos}, nil
}

func (s *Service) storeImage(ctx context.Context, name, dataURL string) string {
	file, err := s.imgs.SaveDataURL(name, dataURL)
	if err != nil {
		metrics.RecordErrorByComponent("images", "save")
		s.logger.Warn(ctx, "snapshot not stored", logger.String("name", name), logger.Error(err))
		return ""
	}
	metrics.RecordImageStored()
	return file
}

// ImagesDir returns the directory snapshots are written to, or "" before Start.
func (s *Service) ImagesDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.imgs == nil {
		return ""
	}
	return s.imgs.Dir()
}

// Ranking returns the top entries. limit 0 selects the configured default;
// larger limits are capped at the configured maximum.
func (s *Service) Ranking(ctx context.Context, limit int) ([]types.RankedEntry, error) {
	_, repo, err := s.running()
	if err != nil {
		return nil, err
	}
	cfg := s.Config()
	switch {
	case limit < 0:
		return nil, fmt.Errorf("ranking: %w: limit must not be negative", ErrBadRequest)
	case limit == 0:
		limit = cfg.DefaultRankingLimit
	case limit > cfg.MaxRankingLimit:
		limit = cfg.MaxRankingLimit
	}
	entries, err := repo.TopN(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return types.Rank(entries), nil
}

// Entry returns one stored entry.
func (s *Service) Entry(ctx context.Context, id int64) (model.ScoreEntry, error) {
	_, repo, err := s.running()
	if err != nil {
		return model.ScoreEntry{}, err
	}
	e, err := repo.Get(ctx, id)
	if err != nil {
		return model.ScoreEntry{}, fmt.Errorf("entry %d: %w", id, err)
	}
	return e, nil
}

// DeleteScores removes the given ids and reports how many existed.
func (s *Service) DeleteScores(ctx context.Context, ids []int64) (int, error) {
	_, repo, err := s.running()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("delete scores: %w: no ids", ErrBadRequest)
	}
	n, err := repo.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete scores: %w", err)
	}
	metrics.RecordScoresDeleted(n)
	metrics.UpdateRankingEntries(repo.Count(ctx))
	s.logger.Info(ctx, "scores deleted", logger.Int("requested", len(ids)), logger.Int("deleted", n))
	return n, nil
}

// ClearAll removes every ranking entry.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	_, repo, err := s.running()
	if err != nil {
		return 0, err
	}
	n, err := repo.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear all: %w", err)
	}
	metrics.RecordScoresDeleted(n)
	metrics.UpdateRankingEntries(0)
	s.logger.Warn(ctx, "ranking cleared", logger.Int("deleted", n))
	return n, nil
}
