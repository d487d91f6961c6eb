package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/internal/domain/pose"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it has the game defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, "json")
			convey.So(cfg.DefaultRankingLimit, convey.ShouldEqual, 20)
			convey.So(cfg.MaxRankingLimit, convey.ShouldEqual, 100)
			convey.So(cfg.BattleRankingLimit, convey.ShouldEqual, 50)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MeasureDuration, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Score.Baseline, convey.ShouldEqual, 100000.0)
			convey.So(cfg.Score.FootReference, convey.ShouldEqual, pose.FootHeel)
			convey.So(cfg.Stabilizer.HistorySize, convey.ShouldEqual, 10)
			convey.So(cfg.Battle.PenaltyPerClick, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given an otherwise valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func()
		}{
			{"empty addr", func() { cfg.Addr = "" }},
			{"unknown backend", func() { cfg.StoreBackend = "redis" }},
			{"unknown log format", func() { cfg.LogFormat = "xml" }},
			{"default above max", func() { cfg.DefaultRankingLimit = 200 }},
			{"zero queue", func() { cfg.QueueSize = 0 }},
			{"zero ttl", func() { cfg.SessionTTL = 0 }},
			{"negative penalty", func() { cfg.Battle.PenaltyPerClick = -1 }},
			{"zero history", func() { cfg.Stabilizer.HistorySize = 0 }},
			{"baseline above max", func() { cfg.Score.Baseline = cfg.Score.MaxTotal + 1 }},
			{"dashed metric namespace", func() { cfg.Metrics.Namespace = "combat-power" }},
			{"reserved metric label", func() { cfg.Metrics.Labels = map[string]string{"__name": "x"} }},
		}
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate()
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
