package stabilizer

import (
	"math"

	"github.com/okian/combatpower/internal/domain/scoring"
)

// Stats is the smoothed counterpart of scoring.RawStats. Averages are not
// integers, so every field is a float.
type Stats struct {
	BasePower       float64 `json:"base_power"`
	PoseBonus       float64 `json:"pose_bonus"`
	ExpressionBonus float64 `json:"expression_bonus"`
	TotalPower      float64 `json:"total_power"`

	Height     float64 `json:"height"`
	Reach      float64 `json:"reach"`
	Shoulder   float64 `json:"shoulder"`
	Expression float64 `json:"expression"`
	Pose       float64 `json:"pose"`
}

// FromRaw converts a raw frame result.
func FromRaw(r scoring.RawStats) Stats {
	return Stats{
		BasePower:       float64(r.BasePower),
		PoseBonus:       float64(r.PoseBonus),
		ExpressionBonus: float64(r.ExpressionBonus),
		TotalPower:      float64(r.TotalPower),
		Height:          r.Height,
		Reach:           r.Reach,
		Shoulder:        r.Shoulder,
		Expression:      r.Expression,
		Pose:            r.Pose,
	}
}

// Total returns TotalPower rounded half-up, the integer shown to players.
func (s Stats) Total() int {
	return int(math.Floor(s.TotalPower + 0.5))
}

// fields exposes every numeric field for the per-field passes.
func (s *Stats) fields() [9]*float64 {
	return [9]*float64{
		&s.BasePower, &s.PoseBonus, &s.ExpressionBonus, &s.TotalPower,
		&s.Height, &s.Reach, &s.Shoulder, &s.Expression, &s.Pose,
	}
}
