package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/okian/combatpower/internal/adapters/http/api"
	"github.com/okian/combatpower/internal/adapters/repository"
	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/replay"
)

const standingMaleTotal = 326802

// A 1x1 transparent PNG.
const pngDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func newServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	ctx := context.Background()

	cfg := config.New()
	cfg.ImagesDir = t.TempDir()
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

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
	Image   string `json:"image"`
	Rank    int    `json:"rank"`
	Deleted int    `json:"deleted"`
}

type rawStats struct {
	TotalPower int `json:"total_power"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestOps(t *testing.T) {
	srv, _ := newServer(t)

	Convey("Health, stats and metrics respond", t, func() {
		var health map[string]any
		So(call(t, http.MethodGet, srv.URL+"/healthz", nil, &health), ShouldEqual, http.StatusOK)
		So(health["status"], ShouldEqual, "ok")

		var stats map[string]any
		So(call(t, http.MethodGet, srv.URL+"/stats", nil, &stats), ShouldEqual, http.StatusOK)
		So(stats["started"], ShouldEqual, true)
		So(stats, ShouldContainKey, "score_constants")
		So(stats, ShouldContainKey, "stabilizer")

		resp, err := http.Get(srv.URL + "/metrics")
		So(err, ShouldBeNil)
		defer func() { _ = resp.Body.Close() }()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
	})
}

func TestCompute(t *testing.T) {
	srv, _ := newServer(t)

	Convey("Given the compute endpoint", t, func() {
		Convey("A standing frame scores the known total", func() {
			var raw rawStats
			code := call(t, http.MethodPost, srv.URL+"/api/compute",
				map[string]any{"landmarks": replay.Standing(), "gender": "male"}, &raw)
			So(code, ShouldEqual, http.StatusOK)
			So(raw.TotalPower, ShouldEqual, standingMaleTotal)
		})

		Convey("An incomplete frame scores the baseline", func() {
			var raw rawStats
			code := call(t, http.MethodPost, srv.URL+"/api/compute",
				map[string]any{"landmarks": []pose.Landmark{{X: 0.5, Y: 0.5}}}, &raw)
			So(code, ShouldEqual, http.StatusOK)
			So(raw.TotalPower, ShouldEqual, 100000)
		})

		Convey("A broken body is a bad request", func() {
			resp, err := http.Post(srv.URL+"/api/compute", "application/json", strings.NewReader("{"))
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A non-JSON content type is refused", func() {
			resp, err := http.Post(srv.URL+"/api/compute", "text/plain", strings.NewReader("{}"))
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			So(resp.StatusCode, ShouldEqual, http.StatusUnsupportedMediaType)
		})
	})
}

func TestSessions(t *testing.T) {
	srv, _ := newServer(t)

	Convey("Given a started session", t, func() {
		var sess struct {
			SessionID string    `json:"session_id"`
			ExpiresAt time.Time `json:"expires_at"`
			Player    int       `json:"player"`
		}
		So(call(t, http.MethodPost, srv.URL+"/api/sessions", map[string]any{"gender": "male", "player": 2}, &sess),
			ShouldEqual, http.StatusCreated)
		So(sess.SessionID, ShouldNotBeEmpty)
		So(sess.Player, ShouldEqual, 2)
		So(sess.ExpiresAt.After(time.Now()), ShouldBeTrue)
		path := srv.URL + "/api/sessions/" + sess.SessionID

		Convey("Frames are accepted once per seq and folded", func() {
			for seq := 1; seq <= 4; seq++ {
				So(call(t, http.MethodPost, path+"/frames",
					map[string]any{"seq": seq, "landmarks": replay.Standing()}, nil), ShouldEqual, http.StatusAccepted)
			}
			var ack map[string]any
			So(call(t, http.MethodPost, path+"/frames",
				map[string]any{"seq": 2, "landmarks": replay.Standing()}, &ack), ShouldEqual, http.StatusOK)
			So(ack["status"], ShouldEqual, "duplicate")

			var snap struct {
				Frames int64 `json:"frames"`
			}
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				call(t, http.MethodGet, path, nil, &snap)
				if snap.Frames >= 4 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(snap.Frames, ShouldEqual, 4)

			var frozen struct {
				TotalPower int   `json:"total_power"`
				PeakTotal  int   `json:"peak_total"`
				Frames     int64 `json:"frames"`
			}
			So(call(t, http.MethodPost, path+"/freeze", nil, &frozen), ShouldEqual, http.StatusOK)
			So(frozen.TotalPower, ShouldEqual, standingMaleTotal)
			So(frozen.PeakTotal, ShouldEqual, standingMaleTotal)
			So(frozen.Frames, ShouldEqual, 4)

			Convey("And a frozen session refuses frames", func() {
				var e apiError
				So(call(t, http.MethodPost, path+"/frames",
					map[string]any{"seq": 9, "landmarks": replay.Standing()}, &e), ShouldEqual, http.StatusConflict)
				So(e.Code, ShouldEqual, "session_frozen")
			})
		})

		Convey("Freezing without frames gives the baseline", func() {
			var frozen struct {
				TotalPower int `json:"total_power"`
			}
			So(call(t, http.MethodPost, path+"/freeze", nil, &frozen), ShouldEqual, http.StatusOK)
			So(frozen.TotalPower, ShouldEqual, 100000)
		})

		Convey("Ending the session removes it", func() {
			So(call(t, http.MethodDelete, path, nil, nil), ShouldEqual, http.StatusNoContent)
			var e apiError
			So(call(t, http.MethodGet, path, nil, &e), ShouldEqual, http.StatusNotFound)
			So(e.Code, ShouldEqual, "not_found")
		})
	})

	Convey("An empty body starts a player one session", t, func() {
		var sess struct {
			Player int    `json:"player"`
			Gender string `json:"gender"`
		}
		So(call(t, http.MethodPost, srv.URL+"/api/sessions", nil, &sess), ShouldEqual, http.StatusCreated)
		So(sess.Player, ShouldEqual, 1)
		So(sess.Gender, ShouldEqual, "male")
	})

	Convey("An unknown player is rejected", t, func() {
		var e apiError
		So(call(t, http.MethodPost, srv.URL+"/api/sessions", map[string]any{"player": 3}, &e), ShouldEqual, http.StatusBadRequest)
		So(e.Code, ShouldEqual, "bad_request")
	})

	Convey("An unknown session is not found", t, func() {
		So(call(t, http.MethodPost, srv.URL+"/api/sessions/nope/frames",
			map[string]any{"seq": 1, "landmarks": replay.Standing()}, nil), ShouldEqual, http.StatusNotFound)
	})
}

func TestRanking(t *testing.T) {
	srv, svc := newServer(t)

	Convey("Given saved scores", t, func() {
		_, err := svc.ClearAll(context.Background())
		So(err, ShouldBeNil)

		requestID := fmt.Sprintf("r-%d", time.Now().UnixNano())
		var a, b, c result
		So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"name": "GOKU", "score": 300000, "image": pngDataURL}, &a),
			ShouldEqual, http.StatusCreated)
		So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"name": "VEGETA", "score": 250000}, &b),
			ShouldEqual, http.StatusCreated)
		So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"score": 120000, "request_id": requestID}, &c),
			ShouldEqual, http.StatusCreated)
		So(a.Success, ShouldBeTrue)
		So(a.Message, ShouldEqual, "スコアを保存しました！")
		So(a.Rank, ShouldEqual, 1)
		So(a.Image, ShouldNotBeEmpty)

		Convey("The ranking lists them by score", func() {
			var rows []struct {
				Rank  int    `json:"rank"`
				Name  string `json:"name"`
				Score int    `json:"score"`
			}
			So(call(t, http.MethodGet, srv.URL+"/api/get_ranking?limit=2", nil, &rows), ShouldEqual, http.StatusOK)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].Name, ShouldEqual, "GOKU")
			So(rows[1].Name, ShouldEqual, "VEGETA")

			So(call(t, http.MethodGet, srv.URL+"/api/get_ranking", nil, &rows), ShouldEqual, http.StatusOK)
			So(rows, ShouldHaveLength, 3)
			So(rows[2].Name, ShouldEqual, service.DefaultPlayerName)
		})

		Convey("A bad limit is rejected", func() {
			So(call(t, http.MethodGet, srv.URL+"/api/get_ranking?limit=-1", nil, nil), ShouldEqual, http.StatusBadRequest)
		})

		Convey("The snapshot is served from the image directory", func() {
			resp, err := http.Get(srv.URL + "/src/" + a.Image)
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			_, err = os.Stat(filepath.Join(svc.ImagesDir(), a.Image))
			So(err, ShouldBeNil)

			missing, err := http.Get(srv.URL + "/src/..%2Fsecret")
			So(err, ShouldBeNil)
			defer func() { _ = missing.Body.Close() }()
			So(missing.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("Repeating a request id returns the first save", func() {
			var again result
			So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"score": 999999, "request_id": requestID}, &again),
				ShouldEqual, http.StatusOK)
			So(again.ID, ShouldEqual, c.ID)
		})

		Convey("An entry is fetched by id", func() {
			var e struct {
				Name string `json:"name"`
			}
			So(call(t, http.MethodGet, srv.URL+"/api/entries/"+jsonInt(b.ID), nil, &e), ShouldEqual, http.StatusOK)
			So(e.Name, ShouldEqual, "VEGETA")
			So(call(t, http.MethodGet, srv.URL+"/api/entries/424242", nil, nil), ShouldEqual, http.StatusNotFound)
		})

		Convey("Ids are deleted as numbers or strings", func() {
			var res result
			So(call(t, http.MethodPost, srv.URL+"/api/delete_scores", map[string]any{"ids": []any{a.ID, jsonInt(b.ID)}}, &res),
				ShouldEqual, http.StatusOK)
			So(res.Success, ShouldBeTrue)
			So(res.Message, ShouldEqual, "選択されたデータを削除しました。")
			So(res.Deleted, ShouldEqual, 2)
		})

		Convey("A single id is deleted through delete_score", func() {
			var res result
			So(call(t, http.MethodPost, srv.URL+"/api/delete_score", map[string]any{"id": jsonInt(a.ID)}, &res),
				ShouldEqual, http.StatusOK)
			So(res.Success, ShouldBeTrue)
			So(res.Deleted, ShouldEqual, 1)
			So(call(t, http.MethodGet, fmt.Sprintf("%s/api/entries/%d", srv.URL, a.ID), nil, nil), ShouldEqual, http.StatusNotFound)

			So(call(t, http.MethodPost, srv.URL+"/api/delete_score", map[string]any{}, &res), ShouldEqual, http.StatusBadRequest)
			So(res.Message, ShouldEqual, "削除対象のIDがありません。")
		})

		Convey("Deleting nothing is rejected", func() {
			var res result
			So(call(t, http.MethodPost, srv.URL+"/api/delete_scores", map[string]any{"ids": []int{}}, &res),
				ShouldEqual, http.StatusBadRequest)
			So(res.Success, ShouldBeFalse)
			So(res.Message, ShouldEqual, "削除対象のIDがありません。")
		})

		Convey("Clearing removes everything", func() {
			var res result
			So(call(t, http.MethodPost, srv.URL+"/api/clear_all", nil, &res), ShouldEqual, http.StatusOK)
			So(res.Message, ShouldEqual, "すべてのデータを削除しました。")
			var rows []any
			call(t, http.MethodGet, srv.URL+"/api/get_ranking", nil, &rows)
			So(rows, ShouldBeEmpty)
		})

		Convey("The chart page renders", func() {
			resp, err := http.Get(srv.URL + "/ranking/chart")
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/html")
		})
	})

	Convey("A save without a score is rejected", t, func() {
		var res result
		So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"name": "KRILLIN"}, &res),
			ShouldEqual, http.StatusBadRequest)
		So(res.Success, ShouldBeFalse)
		So(res.Message, ShouldEqual, "名前またはスコアがありません。")
	})

	Convey("A negative score fails to save", t, func() {
		var res result
		So(call(t, http.MethodPost, srv.URL+"/api/save_score", map[string]any{"name": "X", "score": -1}, &res),
			ShouldEqual, http.StatusBadRequest)
		So(res.Message, ShouldEqual, "スコアの保存に失敗しました。")
	})
}

func TestBattles(t *testing.T) {
	srv, _ := newServer(t)

	Convey("Given the battle endpoints", t, func() {
		Convey("Resolving penalizes the slower clicker", func() {
			var out struct {
				Player1Final int    `json:"player1_final_score"`
				Player2Final int    `json:"player2_final_score"`
				Penalty      int    `json:"penalty"`
				Winner       string `json:"winner"`
			}
			req := map[string]any{
				"player1": map[string]any{"name": "A", "score": 200000, "clicks": 30},
				"player2": map[string]any{"name": "B", "score": 201000, "clicks": 10},
			}
			So(call(t, http.MethodPost, srv.URL+"/api/battles/resolve", req, &out), ShouldEqual, http.StatusOK)
			So(out.Penalty, ShouldEqual, 2000)
			So(out.Player2Final, ShouldEqual, 199000)
			So(out.Winner, ShouldEqual, "A")
		})

		Convey("Saved wins are ranked and draws skipped", func() {
			save := func(winner string) int {
				var res result
				return call(t, http.MethodPost, srv.URL+"/api/save_battle_result", map[string]any{
					"player1_name": "A", "player1_score": 1, "player1_clicks": 1, "player1_final_score": 1,
					"player2_name": "B", "player2_score": 1, "player2_clicks": 1, "player2_final_score": 1,
					"winner": winner,
				}, &res)
			}
			So(save("A"), ShouldEqual, http.StatusCreated)
			So(save("A"), ShouldEqual, http.StatusCreated)
			So(save("B"), ShouldEqual, http.StatusCreated)
			So(save("引き分け"), ShouldEqual, http.StatusCreated)

			var standings []struct {
				Name string `json:"name"`
				Wins int    `json:"wins"`
			}
			So(call(t, http.MethodGet, srv.URL+"/api/get_battle_ranking", nil, &standings), ShouldEqual, http.StatusOK)
			So(standings, ShouldHaveLength, 2)
			So(standings[0].Name, ShouldEqual, "A")
			So(standings[0].Wins, ShouldEqual, 2)
		})

		Convey("Incomplete battle data is rejected", func() {
			var res result
			So(call(t, http.MethodPost, srv.URL+"/api/save_battle_result", map[string]any{"player1_name": "A", "winner": "A"}, &res),
				ShouldEqual, http.StatusBadRequest)
			So(res.Message, ShouldEqual, "バトルデータが不完全です。")
		})
	})
}

func jsonInt(n int64) string {
	data, _ := json.Marshal(n)
	return string(data)
}
