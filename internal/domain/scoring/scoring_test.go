package scoring_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// standingFrame is a hand-measured figure: height 0.8 (nose to heels),
// reach 0.8, shoulders 0.2, legs 0.4 each, nose 0.4 above the hip midpoint.
func standingFrame() []pose.Landmark {
	lm := make([]pose.Landmark, pose.NumLandmarks)
	for i := range lm {
		lm[i] = pose.Landmark{X: 0.5, Y: 0.5}
	}
	for i := pose.Nose; i < pose.FaceLandmarks; i++ {
		lm[i] = pose.Landmark{X: 0.5, Y: 0.1}
	}
	lm[pose.LeftWrist] = pose.Landmark{X: 0.1, Y: 0.5}
	lm[pose.RightWrist] = pose.Landmark{X: 0.9, Y: 0.5}
	lm[pose.LeftShoulder] = pose.Landmark{X: 0.4, Y: 0.3}
	lm[pose.RightShoulder] = pose.Landmark{X: 0.6, Y: 0.3}
	lm[pose.LeftHip] = pose.Landmark{X: 0.45, Y: 0.5}
	lm[pose.RightHip] = pose.Landmark{X: 0.55, Y: 0.5}
	lm[pose.LeftAnkle] = pose.Landmark{X: 0.45, Y: 0.85}
	lm[pose.RightAnkle] = pose.Landmark{X: 0.55, Y: 0.85}
	lm[pose.LeftHeel] = pose.Landmark{X: 0.45, Y: 0.9}
	lm[pose.RightHeel] = pose.Landmark{X: 0.55, Y: 0.9}
	return lm
}

func randomFrame(rng *rand.Rand) []pose.Landmark {
	lm := make([]pose.Landmark, pose.NumLandmarks)
	for i := range lm {
		lm[i] = pose.Landmark{X: rng.Float64(), Y: rng.Float64()}
	}
	return lm
}

func TestCompute(t *testing.T) {
	c := scoring.DefaultConstants()

	Convey("Given a degenerate frame", t, func() {
		for _, lm := range [][]pose.Landmark{nil, {}, make([]pose.Landmark, pose.NumLandmarks-1)} {
			got := scoring.Compute(lm, c, scoring.Male)
			So(got, ShouldResemble, scoring.RawStats{TotalPower: scoring.DefaultBaseline})
		}
	})

	Convey("Given the hand-measured standing frame", t, func() {
		lm := standingFrame()

		Convey("When scoring a male player", func() {
			got := scoring.Compute(lm, c, scoring.Male)

			Convey("Then every part matches the measured proportions", func() {
				So(got.BasePower, ShouldEqual, 121202)
				So(got.PoseBonus, ShouldEqual, 57600)
				So(got.ExpressionBonus, ShouldEqual, 48000)
				So(got.TotalPower, ShouldEqual, 326802)
				So(got.Height, ShouldAlmostEqual, 0.8, 1e-9)
				So(got.Reach, ShouldAlmostEqual, 0.8, 1e-9)
				So(got.Shoulder, ShouldAlmostEqual, 0.2, 1e-9)
				So(got.Pose, ShouldAlmostEqual, 0.8, 1e-9)
				So(got.Expression, ShouldEqual, 1.0)
			})
		})

		Convey("When scoring a female player", func() {
			got := scoring.Compute(lm, c, scoring.Female)

			Convey("Then the multiplier lifts every part", func() {
				So(got.BasePower, ShouldEqual, 133322)
				So(got.PoseBonus, ShouldEqual, 63360)
				So(got.ExpressionBonus, ShouldEqual, 52800)
				So(got.TotalPower, ShouldEqual, 349482)
			})
		})

		Convey("When the gender is unknown", func() {
			Convey("Then it scores like a multiplier of one", func() {
				So(scoring.Compute(lm, c, scoring.Gender("robot")), ShouldResemble, scoring.Compute(lm, c, scoring.Male))
			})
		})

		Convey("When the feet are measured at the ankles", func() {
			ankle := c.Clone()
			ankle.FootReference = pose.FootAnkle
			got := scoring.Compute(lm, ankle, scoring.Male)

			Convey("Then height shrinks to the ankle line", func() {
				So(got.Height, ShouldAlmostEqual, 0.75, 1e-9)
			})
		})

		spread := func(reach float64) scoring.RawStats {
			wide := standingFrame()
			wide[pose.LeftWrist].X = 0.5 - reach/2
			wide[pose.RightWrist].X = 0.5 + reach/2
			return scoring.Compute(wide, c, scoring.Male)
		}

		Convey("When the wrists spread further apart below the clip", func() {
			// Height is 0.8 and the clip is 1.6 heights, so reach saturates at 1.28.
			reaches := []float64{0.6, 0.8, 0.95, 1.1, 1.25}

			Convey("Then every step raises the base power", func() {
				prev := spread(reaches[0])
				for _, r := range reaches[1:] {
					next := spread(r)
					So(next.BasePower, ShouldBeGreaterThan, prev.BasePower)
					So(next.TotalPower, ShouldBeGreaterThan, prev.TotalPower)
					prev = next
				}
			})
		})

		Convey("When the wrists spread past the clip", func() {
			atClip := spread(1.3)
			beyond := spread(1.6)

			Convey("Then the reach term saturates", func() {
				So(beyond.BasePower, ShouldEqual, atClip.BasePower)
				So(beyond.TotalPower, ShouldEqual, atClip.TotalPower)
				So(beyond.Reach, ShouldBeGreaterThan, atClip.Reach)
			})
		})

		Convey("When inspecting the features", func() {
			f, ok := scoring.ComputeFeatures(lm, c, scoring.Male)
			So(ok, ShouldBeTrue)
			So(f.ReachNorm, ShouldAlmostEqual, 0.625, 1e-9)
			So(f.ShoulderN, ShouldAlmostEqual, 0.15625, 1e-9)
			So(f.LegNorm, ShouldAlmostEqual, 0.3125, 1e-9)
			So(f.StyleRaw, ShouldAlmostEqual, 0.88, 1e-9)
			So(f.Combined, ShouldAlmostEqual, 0.5670047, 1e-6)
		})
	})

	Convey("Given many random frames", t, func() {
		rng := rand.New(rand.NewSource(7))

		Convey("Then totals stay within baseline and max total", func() {
			for i := 0; i < 500; i++ {
				lm := randomFrame(rng)
				for _, g := range []scoring.Gender{scoring.Male, scoring.Female} {
					got := scoring.Compute(lm, c, g)
					So(got.TotalPower, ShouldBeBetweenOrEqual, scoring.DefaultBaseline, scoring.DefaultMaxTotal)
					So(got.BasePower, ShouldBeGreaterThanOrEqualTo, 0)
					So(got.PoseBonus, ShouldBeGreaterThanOrEqualTo, 0)
					So(got.ExpressionBonus, ShouldBeGreaterThanOrEqualTo, 0)
					parts := got.BasePower + got.PoseBonus + got.ExpressionBonus
					So(parts-(got.TotalPower-scoring.DefaultBaseline), ShouldBeBetweenOrEqual, -2, 2)
				}
			}
		})

		Convey("Then the female score is never below the male score", func() {
			for i := 0; i < 200; i++ {
				lm := randomFrame(rng)
				So(scoring.Compute(lm, c, scoring.Female).TotalPower, ShouldBeGreaterThanOrEqualTo,
					scoring.Compute(lm, c, scoring.Male).TotalPower)
			}
		})

		Convey("Then scoring is deterministic", func() {
			lm := randomFrame(rng)
			So(scoring.Compute(lm, c, scoring.Male), ShouldResemble, scoring.Compute(lm, c, scoring.Male))
		})
	})
}

func TestConstants(t *testing.T) {
	Convey("Given the default constants", t, func() {
		c := scoring.DefaultConstants()
		So(c.Validate(), ShouldBeNil)
		So(c.Span(), ShouldEqual, 400000)
		So(c.Multiplier(scoring.Female), ShouldEqual, 1.10)
		So(c.Multiplier(""), ShouldEqual, 1.0)

		Convey("Invalid values are rejected", func() {
			bad := c.Clone()
			bad.MaxTotal = bad.Baseline
			So(errors.Is(bad.Validate(), scoring.ErrInvalidConstants), ShouldBeTrue)

			bad = c.Clone()
			bad.WeightStyle = -1
			So(errors.Is(bad.Validate(), scoring.ErrInvalidConstants), ShouldBeTrue)

			bad = c.Clone()
			bad.FootReference = "toes"
			So(errors.Is(bad.Validate(), scoring.ErrInvalidConstants), ShouldBeTrue)

			bad = c.Clone()
			bad.GenderMultiplier["male"] = 0
			So(errors.Is(bad.Validate(), scoring.ErrInvalidConstants), ShouldBeTrue)
			So(c.GenderMultiplier["male"], ShouldEqual, 1.0)
		})
	})
}

func TestScorer(t *testing.T) {
	Convey("Given a scorer with default constants", t, func() {
		s := scoring.NewScorer()
		lm := standingFrame()

		So(s.Score(lm, scoring.Male).TotalPower, ShouldEqual, 326802)

		Convey("When the constants are swapped", func() {
			c := s.Constants()
			c.Baseline = 0
			c.MaxTotal = 1000
			So(s.SetConstants(c), ShouldBeNil)

			Convey("Then the next frame uses them", func() {
				So(s.Score(nil, scoring.Male).TotalPower, ShouldEqual, 0)
				So(s.Score(lm, scoring.Male).TotalPower, ShouldBeLessThanOrEqualTo, 1000)
			})
		})

		Convey("When invalid constants are offered", func() {
			c := s.Constants()
			c.ClipFeature = 0
			So(s.SetConstants(c), ShouldNotBeNil)
			So(scoring.NewScorer(scoring.WithConstants(c)).Constants().ClipFeature, ShouldEqual, scoring.DefaultClipFeature)

			Convey("Then the previous constants stay active", func() {
				So(s.Constants().ClipFeature, ShouldEqual, scoring.DefaultClipFeature)
			})
		})

		Convey("Features follow the current constants", func() {
			f, ok := s.Features(lm, scoring.Female)
			So(ok, ShouldBeTrue)
			So(f.Multiplier, ShouldEqual, 1.10)
		})
	})
}
