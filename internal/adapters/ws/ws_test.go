package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/okian/combatpower/internal/adapters/repository"
	"github.com/okian/combatpower/internal/adapters/ws"
	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/internal/replay"
)

const standingMaleTotal = 326802

type event struct {
	Event      string `json:"event"`
	SessionID  string `json:"session_id"`
	Frames     int64  `json:"frames"`
	TotalPower int    `json:"total_power"`
	PeakTotal  int    `json:"peak_total"`
	Message    string `json:"message"`
	Raw        struct {
		TotalPower int `json:"total_power"`
	} `json:"raw"`
	Stats struct {
		TotalPower float64 `json:"total_power"`
	} `json:"combat_stats"`
}

func startServer(t *testing.T) (string, *ws.Handler, *service.Service) {
	t.Helper()
	ctx := context.Background()
	cfg := config.New()
	cfg.ImagesDir = t.TempDir()
	svc := service.New(service.WithConfig(cfg), service.WithRepository(repository.NewTreapStore(ctx)))
	require.NoError(t, svc.Start(ctx))

	h := ws.New(svc)
	runCtx, cancel := context.WithCancel(ctx)
	go h.Run(runCtx)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), h, svc
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestMeasure(t *testing.T) {
	url, h, svc := startServer(t)

	Convey("Given a connected player", t, func() {
		conn := dial(t, url+"?gender=male&player=1")
		hello := read(t, conn)
		So(hello.Event, ShouldEqual, ws.EventReset)
		So(hello.SessionID, ShouldNotBeEmpty)
		So(h.Count(), ShouldBeGreaterThanOrEqualTo, 1)

		Convey("Each frame is answered with stats", func() {
			send(t, conn, ws.Message{Landmarks: replay.Standing()})
			ev := read(t, conn)
			So(ev.Event, ShouldEqual, ws.EventStats)
			So(ev.Frames, ShouldEqual, 1)
			So(ev.Raw.TotalPower, ShouldEqual, standingMaleTotal)
			So(ev.Stats.TotalPower, ShouldEqual, float64(standingMaleTotal))

			send(t, conn, ws.Message{Type: ws.TypeFrame, Landmarks: replay.Standing()})
			So(read(t, conn).Frames, ShouldEqual, 2)

			Convey("Freezing fixes the score and refuses more frames", func() {
				send(t, conn, ws.Message{Type: ws.TypeFreeze})
				fr := read(t, conn)
				So(fr.Event, ShouldEqual, ws.EventFrozen)
				So(fr.TotalPower, ShouldEqual, standingMaleTotal)
				So(fr.PeakTotal, ShouldEqual, standingMaleTotal)
				So(fr.Frames, ShouldEqual, 2)

				send(t, conn, ws.Message{Landmarks: replay.Standing()})
				So(read(t, conn).Event, ShouldEqual, ws.EventError)
			})

			Convey("Reset clears the history", func() {
				send(t, conn, ws.Message{Type: ws.TypeReset})
				So(read(t, conn).Event, ShouldEqual, ws.EventReset)
			})
		})

		Convey("Broken and unknown messages get error events", func() {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
			So(read(t, conn).Event, ShouldEqual, ws.EventError)

			send(t, conn, ws.Message{Type: "dance"})
			ev := read(t, conn)
			So(ev.Event, ShouldEqual, ws.EventError)
			So(ev.Message, ShouldContainSubstring, "dance")
		})

		Convey("Closing the connection ends the session", func() {
			So(conn.Close(), ShouldBeNil)
			deadline := time.Now().Add(2 * time.Second)
			var err error
			for time.Now().Before(deadline) {
				if _, err = svc.Session(context.Background(), hello.SessionID); err != nil {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(err, ShouldNotBeNil)
		})
	})

	Convey("An invalid player is refused before the upgrade", t, func() {
		_, resp, err := websocket.DefaultDialer.Dial(url+"?player=7", nil)
		So(err, ShouldNotBeNil)
		So(resp, ShouldNotBeNil)
		So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
	})
}
