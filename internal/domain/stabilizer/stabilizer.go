// Package stabilizer smooths a stream of per-frame scores into a steady
// display value: a bounded moving window, outlier rejection on total power
// and a per-field rate limit.
package stabilizer

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/okian/combatpower/internal/domain/scoring"
	"gonum.org/v1/gonum/stat"
)

// Default tuning.
const (
	DefaultHistorySize             = 10
	DefaultOutlierStdDevMultiplier = 2.0
	DefaultMaxChangeRate           = 0.25
	minSamplesForOutliers          = 3
)

// Tuning controls the window, the outlier filter and the rate limit.
type Tuning struct {
	HistorySize             int     `koanf:"history_size" json:"history_size"`
	OutlierStdDevMultiplier float64 `koanf:"outlier_stddev_multiplier" json:"outlier_stddev_multiplier"`
	MaxChangeRate           float64 `koanf:"max_change_rate" json:"max_change_rate"`
}

// DefaultTuning returns the stock tuning.
func DefaultTuning() Tuning {
	return Tuning{
		HistorySize:             DefaultHistorySize,
		OutlierStdDevMultiplier: DefaultOutlierStdDevMultiplier,
		MaxChangeRate:           DefaultMaxChangeRate,
	}
}

// Validate checks that the tuning describes a usable filter.
func (t Tuning) Validate() error {
	switch {
	case t.HistorySize < 1:
		return fmt.Errorf("%w: history_size must be at least 1", ErrInvalidTuning)
	case t.OutlierStdDevMultiplier <= 0:
		return fmt.Errorf("%w: outlier_stddev_multiplier must be positive", ErrInvalidTuning)
	case t.MaxChangeRate < 0:
		return fmt.Errorf("%w: max_change_rate must not be negative", ErrInvalidTuning)
	}
	return nil
}

// State is the per-session memory of the stabilizer. It is a value: Update
// never modifies the State it is given.
type State struct {
	history []scoring.RawStats
	last    Stats
	hasLast bool
}

// Len returns the number of samples in the window.
func (s State) Len() int { return len(s.history) }

// History returns a copy of the window, oldest first.
func (s State) History() []scoring.RawStats {
	return append([]scoring.RawStats(nil), s.history...)
}

// LastStable returns the previous output, if any.
func (s State) LastStable() (Stats, bool) { return s.last, s.hasLast }

// Report describes what one Update did.
type Report struct {
	Rejected int  // samples dropped as outliers
	Held     bool // no sample survived; the previous output was repeated
	Clamped  bool // total power hit the rate limit
}

// Stabilizer applies a Tuning. The tuning can be swapped at runtime; States
// are owned by callers.
type Stabilizer struct {
	tuning atomic.Pointer[Tuning]
}

// Option applies a configuration option to the Stabilizer.
type Option func(*Stabilizer)

// WithTuning sets the tuning; invalid tuning is ignored.
func WithTuning(t Tuning) Option {
	return func(s *Stabilizer) {
		if t.Validate() == nil {
			s.tuning.Store(&t)
		}
	}
}

// New creates a Stabilizer with DefaultTuning unless overridden.
func New(opts ...Option) *Stabilizer {
	s := &Stabilizer{}
	def := DefaultTuning()
	s.tuning.Store(&def)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tuning returns the active tuning.
func (s *Stabilizer) Tuning() Tuning { return *s.tuning.Load() }

// SetTuning swaps the tuning after validating it.
func (s *Stabilizer) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.tuning.Store(&t)
	return nil
}

// Reset returns an empty State.
func (s *Stabilizer) Reset() State { return State{} }

// Update folds raw into state and returns the smoothed stats with the next state.
func (s *Stabilizer) Update(state State, raw scoring.RawStats) (Stats, State) {
	out, next, _ := s.Step(state, raw)
	return out, next
}

// Step is Update with a Report of what happened.
func (s *Stabilizer) Step(state State, raw scoring.RawStats) (Stats, State, Report) {
	t := s.Tuning()
	var rep Report

	keep := len(state.history) + 1
	if keep > t.HistorySize {
		keep = t.HistorySize
	}
	history := make([]scoring.RawStats, 0, keep)
	history = append(history, state.history[len(state.history)+1-keep:]...)
	history = append(history, raw)
	next := State{history: history, last: state.last, hasLast: state.hasLast}

	survivors := history
	if len(history) >= minSamplesForOutliers {
		survivors = rejectOutliers(history, t.OutlierStdDevMultiplier)
		rep.Rejected = len(history) - len(survivors)
	}
	if len(survivors) == 0 {
		rep.Held = true
		return state.last, next, rep
	}

	avg := average(survivors)
	if !state.hasLast {
		next.last, next.hasLast = avg, true
		return avg, next, rep
	}

	out := avg
	prev := state.last
	of, pf := out.fields(), prev.fields()
	for i := range of {
		var clamped bool
		*of[i], clamped = limit(*pf[i], *of[i], t.MaxChangeRate)
		if clamped && of[i] == &out.TotalPower { // only the headline number is reported
			rep.Clamped = true
		}
	}
	next.last = out
	return out, next, rep
}

// rejectOutliers keeps samples whose total power lies within k population
// standard deviations of the window mean.
func rejectOutliers(history []scoring.RawStats, k float64) []scoring.RawStats {
	totals := make([]float64, len(history))
	for i, h := range history {
		totals[i] = float64(h.TotalPower)
	}
	mean, variance := stat.PopMeanVariance(totals, nil)
	bound := k * math.Sqrt(variance)

	out := make([]scoring.RawStats, 0, len(history))
	for i, h := range history {
		if math.Abs(totals[i]-mean) <= bound {
			out = append(out, h)
		}
	}
	return out
}

func average(samples []scoring.RawStats) Stats {
	var sum Stats
	sf := sum.fields()
	for _, r := range samples {
		v := FromRaw(r)
		vf := v.fields()
		for i := range sf {
			*sf[i] += *vf[i]
		}
	}
	n := float64(len(samples))
	for i := range sf {
		*sf[i] /= n
	}
	return sum
}

// limit moves from last toward target by at most |last|*rate.
func limit(last, target, rate float64) (float64, bool) {
	delta := target - last
	maxStep := math.Abs(last * rate)
	if math.Abs(delta) <= maxStep {
		return target, false
	}
	return last + math.Copysign(maxStep, delta), true
}
