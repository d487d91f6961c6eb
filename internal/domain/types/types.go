// Package types contains view types shared by the transports.
package types

import (
	"time"

	"github.com/okian/combatpower/internal/domain/model"
)

// RankedEntry is a ranking row with its 1-based position.
type RankedEntry struct {
	Rank      int       `json:"rank"`
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Rank numbers entries already in ranking order. Equal scores share a rank
// and the next distinct score continues densely.
func Rank(entries []model.ScoreEntry) []RankedEntry {
	out := make([]RankedEntry, len(entries))
	rank := 0
	for i, e := range entries {
		if i == 0 || e.Score != entries[i-1].Score {
			rank++
		}
		out[i] = RankedEntry{Rank: rank, ID: e.ID, Name: e.Name, Score: e.Score, Image: e.Image, CreatedAt: e.CreatedAt}
	}
	return out
}

// SessionSnapshot is the externally visible state of a measurement session.
type SessionSnapshot struct {
	ID         string     `json:"session_id"`
	Gender     string     `json:"gender"`
	Player     int        `json:"player"`
	Frames     int64      `json:"frames"`
	Stats      any        `json:"combat_stats"`
	PeakTotal  int        `json:"peak_total"`
	Frozen     bool       `json:"frozen"`
	FinalScore int        `json:"final_score,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	FrozenAt   *time.Time `json:"frozen_at,omitempty"`
}
