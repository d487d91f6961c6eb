package replay_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/okian/combatpower/internal/adapters/http/api"
	"github.com/okian/combatpower/internal/adapters/repository"
	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/replay"
	logging "github.com/okian/combatpower/pkg/logger"
)

func startAPI(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	ctx := context.Background()
	cfg := config.New()
	cfg.ImagesDir = t.TempDir()
	cfg.QueueSize = 8
	cfg.WorkerCount = 2
	svc := service.New(service.WithConfig(cfg), service.WithRepository(repository.NewTreapStore(ctx)))
	require.NoError(t, svc.Start(ctx))

	r := api.NewRouter()
	api.NewServer(svc).Register(ctx, r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv, svc
}

func TestOnline(t *testing.T) {
	_ = logging.Init()
	srv, svc := startAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	Convey("Given a running server", t, func() {
		Convey("A glitchy stream folds to the same score as locally", func() {
			cfg := &replay.Config{BaseURL: srv.URL, Gender: scoring.Female, Player: 2, Timeout: 5 * time.Second}
			res, err := replay.Online(ctx, cfg, replay.Synthetic(80, 11, 0.003, 20))
			So(err, ShouldBeNil)
			So(res.Steps, ShouldHaveLength, 80)
			So(res.Server, ShouldEqual, res.Final)
			So(res.ServerPeak, ShouldEqual, res.Peak)
			So(res.Final, ShouldBeGreaterThan, scoring.DefaultBaseline)
		})

		Convey("A saved run lands in the ranking", func() {
			var out bytes.Buffer
			cfg := &replay.Config{
				BaseURL: srv.URL, Frames: 20, Seed: 5, Gender: scoring.Male, Player: 1,
				Save: true, Name: "REPLAY", Timeout: 5 * time.Second,
			}
			res, err := replay.Run(ctx, cfg, &out)
			So(err, ShouldBeNil)
			So(res.SavedID, ShouldBeGreaterThan, 0)
			So(res.Rank, ShouldBeGreaterThan, 0)

			e, err := svc.Entry(ctx, res.SavedID)
			So(err, ShouldBeNil)
			So(e.Name, ShouldEqual, "REPLAY")
			So(e.Score, ShouldEqual, res.Final)
			So(svc.Stats(ctx)["sessions"], ShouldEqual, 0)
		})
	})

	Convey("An unreachable server is reported unhealthy", t, func() {
		cfg := &replay.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}
		_, err := replay.Online(ctx, cfg, replay.Synthetic(1, 1, 0, 0))
		So(errors.Is(err, replay.ErrUnhealthy), ShouldBeTrue)
	})
}
