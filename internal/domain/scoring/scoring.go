// Package scoring turns one frame of body landmarks into a bounded combat
// power score.
package scoring

import (
	"math"
	"sync/atomic"

	"github.com/okian/combatpower/internal/domain/pose"
	"gonum.org/v1/gonum/stat"
)

const (
	minHeight        = 1e-6
	postureReference = 0.5
	expressionScale  = 0.05

	reachExponent    = 0.90
	shoulderExponent = 0.85
	legExponent      = 0.80
)

// RawStats is the per-frame result. Bonuses are integer game units; the
// debug fields are unrounded.
type RawStats struct {
	BasePower       int `json:"base_power"`
	PoseBonus       int `json:"pose_bonus"`
	ExpressionBonus int `json:"expression_bonus"`
	TotalPower      int `json:"total_power"`

	Height     float64 `json:"height"`
	Reach      float64 `json:"reach"`
	Shoulder   float64 `json:"shoulder"`
	Expression float64 `json:"expression"`
	Pose       float64 `json:"pose"`
}

// Features are the intermediate values of one computation.
type Features struct {
	Height     float64 `json:"height"`
	Reach      float64 `json:"reach"`
	Shoulder   float64 `json:"shoulder"`
	LegLength  float64 `json:"leg_length"`
	ReachNorm  float64 `json:"reach_norm"`
	ShoulderN  float64 `json:"shoulder_norm"`
	LegNorm    float64 `json:"leg_norm"`
	Posture    float64 `json:"posture_norm"`
	Expression float64 `json:"expression_norm"`
	BaseRaw    float64 `json:"base_raw"`
	StyleRaw   float64 `json:"style_raw"`
	Multiplier float64 `json:"multiplier"`
	Combined   float64 `json:"combined"`
}

// ComputeFeatures extracts the normalized features of lm. The second result
// is false for degenerate frames, in which case Features is zero except for
// Multiplier.
func ComputeFeatures(lm []pose.Landmark, c Constants, g Gender) (Features, bool) {
	f := Features{Multiplier: c.Multiplier(g)}
	if !pose.Complete(lm) {
		return f, false
	}

	footL, footR := c.FootReference.Feet()
	top := lm[pose.Nose]

	f.Height = math.Abs(top.Y - (lm[footL].Y+lm[footR].Y)/2)
	f.Reach = pose.Distance(lm[pose.LeftWrist], lm[pose.RightWrist])
	f.Shoulder = pose.Distance(lm[pose.LeftShoulder], lm[pose.RightShoulder])
	f.LegLength = pose.Distance(lm[pose.LeftHip], lm[footL]) + pose.Distance(lm[pose.RightHip], lm[footR])

	h := math.Max(f.Height, minHeight)
	f.ReachNorm = clip01((f.Reach / h) / c.ClipFeature)
	f.ShoulderN = clip01((f.Shoulder / h) / c.ClipFeature)
	f.LegNorm = clip01((f.LegLength / h / 2) / c.ClipFeature)

	hipMid := pose.Midpoint(lm[pose.LeftHip], lm[pose.RightHip])
	f.Posture = clip01(pose.Distance(top, hipMid) / postureReference)
	f.Expression = clip01(faceSpread(lm) / expressionScale)

	f.BaseRaw = c.WeightReachInBase*math.Pow(f.ReachNorm, reachExponent) +
		c.WeightShoulderInBase*math.Pow(f.ShoulderN, shoulderExponent) +
		c.WeightLegInBase*math.Pow(f.LegNorm, legExponent)
	f.StyleRaw = c.WeightPoseInStyle*f.Posture + c.WeightExprInStyle*f.Expression
	f.Combined = math.Min(1, (c.WeightBase*f.BaseRaw+c.WeightStyle*f.StyleRaw)*f.Multiplier)
	return f, true
}

// Compute scores one frame. Frames with fewer than pose.NumLandmarks points
// score exactly the baseline with every other field zero.
func Compute(lm []pose.Landmark, c Constants, g Gender) RawStats {
	f, ok := ComputeFeatures(lm, c, g)
	if !ok {
		return RawStats{TotalPower: int(roundHalfUp(c.Baseline))}
	}

	span := c.Span()
	base := span * c.WeightBase * f.BaseRaw * f.Multiplier
	posture := span * c.WeightStyle * c.WeightPoseInStyle * f.Posture * f.Multiplier
	expr := span * c.WeightStyle * c.WeightExprInStyle * f.Expression * f.Multiplier

	sum := base + posture + expr
	if sum > span {
		scale := span / sum
		base *= scale
		posture *= scale
		expr *= scale
		sum = span
	}

	return RawStats{
		BasePower:       int(roundHalfUp(base)),
		PoseBonus:       int(roundHalfUp(posture)),
		ExpressionBonus: int(roundHalfUp(expr)),
		TotalPower:      int(roundHalfUp(c.Baseline + sum)),
		Height:          f.Height,
		Reach:           f.Reach,
		Shoulder:        f.Shoulder,
		Expression:      f.Expression,
		Pose:            f.Posture,
	}
}

// faceSpread is the population standard deviation of the x and y
// coordinates of the leading face points, flattened into one sample.
func faceSpread(lm []pose.Landmark) float64 {
	xs := make([]float64, 0, 2*pose.FaceLandmarks)
	for _, p := range lm[:pose.FaceLandmarks] {
		xs = append(xs, p.X, p.Y)
	}
	_, variance := stat.PopMeanVariance(xs, nil)
	return math.Sqrt(variance)
}

func clip01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Scorer holds the active Constants and allows them to be swapped while
// frames are being scored.
type Scorer struct {
	constants atomic.Pointer[Constants]
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithConstants sets the constants; invalid constants are ignored.
func WithConstants(c Constants) Option {
	return func(s *Scorer) {
		if c.Validate() == nil {
			cc := c.Clone()
			s.constants.Store(&cc)
		}
	}
}

// NewScorer creates a Scorer with DefaultConstants unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{}
	def := DefaultConstants()
	s.constants.Store(&def)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes RawStats with the current constants.
func (s *Scorer) Score(lm []pose.Landmark, g Gender) RawStats {
	return Compute(lm, *s.constants.Load(), g)
}

// Features returns the intermediate features with the current constants.
func (s *Scorer) Features(lm []pose.Landmark, g Gender) (Features, bool) {
	return ComputeFeatures(lm, *s.constants.Load(), g)
}

// Constants returns a copy of the current constants.
func (s *Scorer) Constants() Constants {
	return s.constants.Load().Clone()
}

// SetConstants swaps the constants after validating them.
func (s *Scorer) SetConstants(c Constants) error {
	if err := c.Validate(); err != nil {
		return err
	}
	cc := c.Clone()
	s.constants.Store(&cc)
	return nil
}
