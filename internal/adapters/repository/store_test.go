package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/combatpower/internal/adapters/repository"
	"github.com/okian/combatpower/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func openBackend(t *testing.T, backend string) repository.Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.Open(context.Background(), backend,
		repository.WithDataDir(dir),
		repository.WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("open %s: %v", backend, err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestStores(t *testing.T) {
	for _, backend := range []string{repository.BackendMemory, repository.BackendJSON, repository.BackendSQLite} {
		Convey("Given an empty "+backend+" store", t, func() {
			ctx := context.Background()
			repo := openBackend(t, backend)
			So(repo.Backend(), ShouldEqual, backend)
			So(repo.Count(ctx), ShouldEqual, 0)

			Convey("When entries are saved", func() {
				saved := map[string]model.ScoreEntry{}
				for _, e := range []model.ScoreEntry{
					{Name: "Aki", Score: 250000, Stats: json.RawMessage(`{"total_power":250000}`)},
					{Name: "Ben", Score: 320000},
					{Name: "Cho", Score: 250000, Image: "src/Cho.png"},
					{Name: "Dai", Score: 110000},
				} {
					got, err := repo.Save(ctx, e)
					So(err, ShouldBeNil)
					saved[e.Name] = got
				}

				Convey("Then ids and timestamps are assigned", func() {
					So(saved["Aki"].ID, ShouldBeGreaterThan, 0)
					So(saved["Ben"].ID, ShouldBeGreaterThan, saved["Aki"].ID)
					So(saved["Aki"].CreatedAt.Equal(fixedNow), ShouldBeTrue)
					So(repo.Count(ctx), ShouldEqual, 4)
				})

				Convey("Then TopN orders by score and breaks ties by id", func() {
					top, err := repo.TopN(ctx, 3)
					So(err, ShouldBeNil)
					So(len(top), ShouldEqual, 3)
					So(top[0].Name, ShouldEqual, "Ben")
					So(top[1].Name, ShouldEqual, "Aki")
					So(top[2].Name, ShouldEqual, "Cho")
					So(top[2].Image, ShouldEqual, "src/Cho.png")

					all, err := repo.TopN(ctx, 100)
					So(err, ShouldBeNil)
					So(len(all), ShouldEqual, 4)
				})

				Convey("Then Get and Position find an entry", func() {
					got, err := repo.Get(ctx, saved["Aki"].ID)
					So(err, ShouldBeNil)
					So(got.Name, ShouldEqual, "Aki")
					So(string(got.Stats), ShouldEqual, `{"total_power":250000}`)

					pos, err := repo.Position(ctx, saved["Cho"].ID)
					So(err, ShouldBeNil)
					So(pos, ShouldEqual, 3)

					_, err = repo.Position(ctx, 9999)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
					_, err = repo.Get(ctx, 9999)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})

				Convey("Then selected entries can be deleted", func() {
					n, err := repo.Delete(ctx, []int64{saved["Ben"].ID, saved["Dai"].ID, 9999})
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 2)
					top, _ := repo.TopN(ctx, 10)
					So(len(top), ShouldEqual, 2)
					So(top[0].Name, ShouldEqual, "Aki")
				})

				Convey("Then clearing removes everything", func() {
					n, err := repo.Clear(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 4)
					So(repo.Count(ctx), ShouldEqual, 0)
				})
			})

			Convey("When the newest entry is deleted and the ranking cleared", func() {
				a, err := repo.Save(ctx, model.ScoreEntry{Name: "Aki", Score: 100})
				So(err, ShouldBeNil)
				b, err := repo.Save(ctx, model.ScoreEntry{Name: "Ben", Score: 200})
				So(err, ShouldBeNil)
				_, err = repo.Delete(ctx, []int64{b.ID})
				So(err, ShouldBeNil)
				c, err := repo.Save(ctx, model.ScoreEntry{Name: "Cho", Score: 300})
				So(err, ShouldBeNil)
				_, err = repo.Clear(ctx)
				So(err, ShouldBeNil)
				d, err := repo.Save(ctx, model.ScoreEntry{Name: "Dai", Score: 400})
				So(err, ShouldBeNil)

				Convey("Then no id is handed out twice", func() {
					So(b.ID, ShouldBeGreaterThan, a.ID)
					So(c.ID, ShouldBeGreaterThan, b.ID)
					So(d.ID, ShouldBeGreaterThan, c.ID)
				})
			})

			Convey("When the limit is not positive", func() {
				_, err := repo.TopN(ctx, 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("When the name is empty", func() {
				_, err := repo.Save(ctx, model.ScoreEntry{Score: 1})
				So(errors.Is(err, repository.ErrInvalidEntry), ShouldBeTrue)
			})

			Convey("When battles are saved", func() {
				first, err := repo.SaveBattle(ctx, model.BattleResult{Player1Name: "Aki", Player2Name: "Ben", Winner: "Aki"})
				So(err, ShouldBeNil)
				_, err = repo.SaveBattle(ctx, model.BattleResult{Player1Name: "Aki", Player2Name: "Cho", Winner: "Cho",
					BattleDate: fixedNow.Add(time.Hour)})
				So(err, ShouldBeNil)

				Convey("Then they are listed oldest first", func() {
					battles, err := repo.Battles(ctx)
					So(err, ShouldBeNil)
					So(len(battles), ShouldEqual, 2)
					So(battles[0].ID, ShouldEqual, first.ID)
					So(battles[0].BattleDate.Equal(fixedNow), ShouldBeTrue)
					So(battles[1].Winner, ShouldEqual, "Cho")
				})
			})
		})
	}
}

func TestOpen(t *testing.T) {
	Convey("Unknown backends are rejected", t, func() {
		_, err := repository.Open(context.Background(), "redis")
		So(errors.Is(err, repository.ErrUnknownBackend), ShouldBeTrue)
	})
}

func TestFileStorePersistence(t *testing.T) {
	Convey("Given a JSON store with saved data", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		s, err := repository.NewFileStore(ctx, repository.WithDataDir(dir))
		So(err, ShouldBeNil)
		_, err = s.Save(ctx, model.ScoreEntry{Name: "Aki", Score: 200000})
		So(err, ShouldBeNil)
		_, err = s.SaveBattle(ctx, model.BattleResult{Winner: "Aki"})
		So(err, ShouldBeNil)

		Convey("When reopened", func() {
			again, err := repository.NewFileStore(ctx, repository.WithDataDir(dir))
			So(err, ShouldBeNil)

			Convey("Then the entries and battles are still there", func() {
				So(again.Count(ctx), ShouldEqual, 1)
				battles, _ := again.Battles(ctx)
				So(len(battles), ShouldEqual, 1)

				next, err := again.Save(ctx, model.ScoreEntry{Name: "Ben", Score: 1})
				So(err, ShouldBeNil)
				So(next.ID, ShouldEqual, 2)
			})
		})
	})
}

func TestFileStoreIDsSurviveRestart(t *testing.T) {
	Convey("Given a JSON store whose only entry was deleted", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		s, err := repository.NewFileStore(ctx, repository.WithDataDir(dir))
		So(err, ShouldBeNil)
		first, err := s.Save(ctx, model.ScoreEntry{Name: "Aki", Score: 200000})
		So(err, ShouldBeNil)
		_, err = s.Clear(ctx)
		So(err, ShouldBeNil)

		Convey("When reopened and saved to", func() {
			again, err := repository.NewFileStore(ctx, repository.WithDataDir(dir))
			So(err, ShouldBeNil)
			next, err := again.Save(ctx, model.ScoreEntry{Name: "Ben", Score: 1})
			So(err, ShouldBeNil)

			Convey("Then the new entry gets a fresh id", func() {
				So(next.ID, ShouldEqual, first.ID+1)
			})
		})
	})
}
