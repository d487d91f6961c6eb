package model

import (
	"encoding/json"
	"time"
)

// ScoreEntry is one saved result in the ranking.
type ScoreEntry struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Score     int             `json:"score"`
	Image     string          `json:"image,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RanksBefore orders entries by score descending, then id ascending.
func (e ScoreEntry) RanksBefore(o ScoreEntry) bool {
	if e.Score != o.Score {
		return e.Score > o.Score
	}
	return e.ID < o.ID
}
