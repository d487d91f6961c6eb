package scoring

import (
	"fmt"
	"math"

	"github.com/okian/combatpower/internal/domain/pose"
)

// Gender selects a multiplier from Constants.GenderMultiplier.
type Gender string

// Known genders.
const (
	Male   Gender = "male"
	Female Gender = "female"
)

// Default constants of the game.
const (
	DefaultBaseline     = 100000
	DefaultMaxTotal     = 500000
	DefaultClipFeature  = 1.6
	defaultWeightBase   = 0.70
	defaultWeightStyle  = 0.30
	defaultPoseInStyle  = 0.60
	defaultExprInStyle  = 0.40
	defaultReachInBase  = 0.40
	defaultShoulderBase = 0.35
	defaultLegInBase    = 0.25
	defaultMaleMul      = 1.00
	defaultFemaleMul    = 1.10
)

// Constants tunes the score formula. Treat as read-only once handed to a Scorer.
type Constants struct {
	Baseline    float64 `koanf:"baseline" json:"baseline"`
	MaxTotal    float64 `koanf:"max_total" json:"max_total"`
	ClipFeature float64 `koanf:"clip_feature" json:"clip_feature"`

	WeightBase  float64 `koanf:"weight_base" json:"weight_base"`
	WeightStyle float64 `koanf:"weight_style" json:"weight_style"`

	WeightPoseInStyle float64 `koanf:"weight_pose_in_style" json:"weight_pose_in_style"`
	WeightExprInStyle float64 `koanf:"weight_expr_in_style" json:"weight_expr_in_style"`

	WeightReachInBase    float64 `koanf:"weight_reach_in_base" json:"weight_reach_in_base"`
	WeightShoulderInBase float64 `koanf:"weight_shoulder_in_base" json:"weight_shoulder_in_base"`
	WeightLegInBase      float64 `koanf:"weight_leg_in_base" json:"weight_leg_in_base"`

	GenderMultiplier map[string]float64 `koanf:"gender_multiplier" json:"gender_multiplier"`
	FootReference    pose.FootReference `koanf:"foot_reference" json:"foot_reference"`
}

// DefaultConstants returns the stock game tuning.
func DefaultConstants() Constants {
	return Constants{
		Baseline:             DefaultBaseline,
		MaxTotal:             DefaultMaxTotal,
		ClipFeature:          DefaultClipFeature,
		WeightBase:           defaultWeightBase,
		WeightStyle:          defaultWeightStyle,
		WeightPoseInStyle:    defaultPoseInStyle,
		WeightExprInStyle:    defaultExprInStyle,
		WeightReachInBase:    defaultReachInBase,
		WeightShoulderInBase: defaultShoulderBase,
		WeightLegInBase:      defaultLegInBase,
		GenderMultiplier: map[string]float64{
			string(Male):   defaultMaleMul,
			string(Female): defaultFemaleMul,
		},
		FootReference: pose.FootHeel,
	}
}

// Multiplier returns the multiplier for g, or 1 when g is unknown.
func (c Constants) Multiplier(g Gender) float64 {
	if m, ok := c.GenderMultiplier[string(g)]; ok && m > 0 {
		return m
	}
	return 1.0
}

// Span is the range a frame can add on top of the baseline.
func (c Constants) Span() float64 {
	return c.MaxTotal - c.Baseline
}

// Validate checks the invariants the formula relies on.
func (c Constants) Validate() error {
	switch {
	case c.Baseline < 0:
		return fmt.Errorf("%w: baseline %v is negative", ErrInvalidConstants, c.Baseline)
	case c.MaxTotal <= c.Baseline:
		return fmt.Errorf("%w: max_total %v must exceed baseline %v", ErrInvalidConstants, c.MaxTotal, c.Baseline)
	case c.ClipFeature <= 0:
		return fmt.Errorf("%w: clip_feature must be positive", ErrInvalidConstants)
	case !c.FootReference.Valid():
		return fmt.Errorf("%w: foot_reference %q", ErrInvalidConstants, c.FootReference)
	}
	weights := []float64{
		c.WeightBase, c.WeightStyle, c.WeightPoseInStyle, c.WeightExprInStyle,
		c.WeightReachInBase, c.WeightShoulderInBase, c.WeightLegInBase,
	}
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConstants)
		}
	}
	for g, m := range c.GenderMultiplier {
		if m <= 0 {
			return fmt.Errorf("%w: gender multiplier for %q must be positive", ErrInvalidConstants, g)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a Scorer's map.
func (c Constants) Clone() Constants {
	out := c
	out.GenderMultiplier = make(map[string]float64, len(c.GenderMultiplier))
	for k, v := range c.GenderMultiplier {
		out.GenderMultiplier[k] = v
	}
	return out
}
