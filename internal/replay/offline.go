package replay

import (
	"math"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/stabilizer"
)

// Offline folds frames through a local scorer and stabilizer exactly as a
// server session does and returns the per-frame totals and the frozen score.
func Offline(frames [][]pose.Landmark, c scoring.Constants, t stabilizer.Tuning, g scoring.Gender) Result {
	stab := stabilizer.New(stabilizer.WithTuning(t))
	state := stab.Reset()

	res := Result{Steps: make([]Step, 0, len(frames))}
	final := int(math.Floor(c.Baseline + 0.5))
	for i, lm := range frames {
		raw := scoring.Compute(lm, c, g)
		out, next, rep := stab.Step(state, raw)
		state = next

		total := out.Total()
		res.Steps = append(res.Steps, Step{
			Seq:      int64(i + 1),
			Raw:      raw.TotalPower,
			Smoothed: total,
			Rejected: rep.Rejected,
			Held:     rep.Held,
		})
		final = total
		res.Peak = max(res.Peak, total)
	}
	res.Final = final
	res.Peak = max(res.Peak, final)
	return res
}
