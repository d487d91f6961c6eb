// Package session owns the per-player measurement state: one stabilizer
// state, the latest smoothed stats, the peak total and the frozen result.
package session

import (
	"sync"
	"time"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/stabilizer"
	"github.com/okian/combatpower/internal/domain/types"
)

// Engine bundles the scorer and the stabilizer a session folds frames with.
type Engine struct {
	Scorer     *scoring.Scorer
	Stabilizer *stabilizer.Stabilizer
}

// Frame is the outcome of folding one frame into a session.
type Frame struct {
	Raw    scoring.RawStats  `json:"raw"`
	Stats  stabilizer.Stats  `json:"combat_stats"`
	Report stabilizer.Report `json:"-"`
	Frames int64             `json:"frames"`
}

// Session is one player's measurement. All methods are safe for concurrent
// use; frame order is the caller's responsibility.
type Session struct {
	mu sync.Mutex

	id        string
	gender    scoring.Gender
	player    int
	startedAt time.Time
	expiresAt time.Time

	frames    int64
	state     stabilizer.State
	latest    stabilizer.Stats
	hasLatest bool
	peak      int

	frozen   bool
	final    int
	frozenAt time.Time
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Gender returns the gender the session scores with.
func (s *Session) Gender() scoring.Gender { return s.gender }

// Fold scores lm and advances the stabilizer.
func (s *Session) Fold(e Engine, lm []pose.Landmark) (Frame, error) {
	raw := e.Scorer.Score(lm, s.gender)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return Frame{}, ErrSessionFrozen
	}

	out, next, rep := e.Stabilizer.Step(s.state, raw)
	s.state = next
	s.latest, s.hasLatest = out, true
	s.frames++
	if t := out.Total(); t > s.peak {
		s.peak = t
	}
	return Frame{Raw: raw, Stats: out, Report: rep, Frames: s.frames}, nil
}

// Reset discards the stabilizer history; the peak is kept.
func (s *Session) Reset(e Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}
	s.state = e.Stabilizer.Reset()
	s.latest, s.hasLatest = stabilizer.Stats{}, false
	return nil
}

// Freeze fixes the final score to the latest smoothed total. A session that
// never saw a frame freezes at baseline. Freezing twice returns the first result.
func (s *Session) Freeze(baseline int, at time.Time) (final, peak int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.frozen {
		s.frozen = true
		s.frozenAt = at
		s.final = baseline
		if s.hasLatest {
			s.final = s.latest.Total()
		}
		if s.final > s.peak {
			s.peak = s.final
		}
	}
	return s.final, s.peak
}

// Frozen reports whether the session was frozen.
func (s *Session) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// Snapshot returns the externally visible state.
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := types.SessionSnapshot{
		ID:        s.id,
		Gender:    string(s.gender),
		Player:    s.player,
		Frames:    s.frames,
		Stats:     s.latest,
		PeakTotal: s.peak,
		Frozen:    s.frozen,
		StartedAt: s.startedAt,
		ExpiresAt: s.expiresAt,
	}
	if s.frozen {
		at := s.frozenAt
		snap.FinalScore = s.final
		snap.FrozenAt = &at
	}
	return snap
}

func (s *Session) touch(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	s.expiresAt = now.Add(ttl)
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}
