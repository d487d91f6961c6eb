// Package replay drives recorded or synthetic landmark streams through the
// scoring pipeline, either locally or against a running server.
package replay

import (
	"time"

	"github.com/okian/combatpower/internal/domain/scoring"
)

// Config holds the settings of one replay run.
type Config struct {
	// BaseURL is the server to drive; empty runs offline only.
	BaseURL string
	// Input is a JSON file of recorded frames; empty generates frames.
	Input string
	// Output receives the frames that were replayed.
	Output string

	// Frames, Seed, Jitter and Spikes shape the synthetic stream.
	Frames int
	Seed   uint64
	Jitter float64
	Spikes int

	Gender scoring.Gender
	Player int

	// Save stores the frozen score in the ranking under Name.
	Save bool
	Name string

	Timeout time.Duration
	Verbose bool
}

// Step is one replayed frame.
type Step struct {
	Seq      int64 `json:"seq"`
	Raw      int   `json:"raw_total"`
	Smoothed int   `json:"smoothed_total"`
	Rejected int   `json:"rejected,omitempty"`
	Held     bool  `json:"held,omitempty"`
}

// Result summarizes a run.
type Result struct {
	Steps []Step

	// Final and Peak are computed locally.
	Final int
	Peak  int

	// Server and ServerPeak are reported by the server in online runs.
	Server     int
	ServerPeak int

	// SavedID and Rank are set when the score was saved.
	SavedID int64
	Rank    int

	Duration time.Duration
}
