package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/pkg/logger"
)

const (
	pollInterval     = 20 * time.Millisecond
	backpressureWait = 10 * time.Millisecond
	maxBackpressure  = 500
)

// Online replays frames through the server's session API, freezes the
// session and checks the frozen score against the local pipeline run with
// the server's own constants.
func Online(ctx context.Context, cfg *Config, frames [][]pose.Landmark) (Result, error) {
	log := logger.Get().Named("replay")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	var tuning serverTuning
	if _, err := c.do(ctx, http.MethodGet, "/stats", nil, &tuning, http.StatusOK); err != nil {
		return Result{}, err
	}
	local := Offline(frames, tuning.Constants, tuning.Stabilizer, cfg.Gender)

	var sess sessionResponse
	start := map[string]any{"gender": cfg.Gender, "player": cfg.Player}
	if _, err := c.do(ctx, http.MethodPost, "/api/sessions", start, &sess, http.StatusCreated); err != nil {
		return Result{}, err
	}
	log.Info(ctx, "session started", logger.String("session_id", sess.SessionID))
	defer func() {
		_, _ = c.do(context.WithoutCancel(ctx), http.MethodDelete, "/api/sessions/"+sess.SessionID, nil, nil, http.StatusNoContent, http.StatusNotFound)
	}()

	path := "/api/sessions/" + sess.SessionID
	for i, lm := range frames {
		if err := submit(ctx, c, path+"/frames", frameRequest{Seq: int64(i + 1), Landmarks: lm}); err != nil {
			return Result{}, err
		}
		if cfg.Verbose {
			log.Debug(ctx, "frame submitted", logger.Int("seq", i+1))
		}
	}
	if err := waitFolded(ctx, c, path, int64(len(frames))); err != nil {
		return Result{}, err
	}

	var frozen frozenResponse
	if _, err := c.do(ctx, http.MethodPost, path+"/freeze", nil, &frozen, http.StatusOK); err != nil {
		return Result{}, err
	}
	local.Server, local.ServerPeak = frozen.TotalPower, frozen.PeakTotal
	if local.Server != local.Final || local.ServerPeak != local.Peak {
		return local, fmt.Errorf("%w: server %d/%d, local %d/%d",
			ErrMismatch, local.Server, local.ServerPeak, local.Final, local.Peak)
	}

	if cfg.Save {
		stats, _ := json.Marshal(map[string]int{"total_power": frozen.TotalPower, "peak_total": frozen.PeakTotal})
		req := saveRequest{Name: cfg.Name, Score: frozen.TotalPower, Stats: stats, RequestID: uuid.NewString()}
		var saved saveResponse
		if _, err := c.do(ctx, http.MethodPost, "/api/save_score", req, &saved, http.StatusOK, http.StatusCreated); err != nil {
			return local, err
		}
		local.SavedID, local.Rank = saved.ID, saved.Rank
	}
	return local, nil
}

// submit posts one frame, waiting out backpressure.
func submit(ctx context.Context, c *client, path string, f frameRequest) error {
	for attempt := 0; ; attempt++ {
		code, err := c.do(ctx, http.MethodPost, path, f, nil, http.StatusAccepted, http.StatusOK)
		if err == nil {
			return nil
		}
		if code != http.StatusTooManyRequests || attempt >= maxBackpressure {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backpressureWait):
		}
	}
}

// waitFolded polls the session until the workers folded n frames.
func waitFolded(ctx context.Context, c *client, path string, n int64) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var snap snapshotResponse
		if _, err := c.do(ctx, http.MethodGet, path, nil, &snap, http.StatusOK); err != nil {
			return err
		}
		if snap.Frames >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d of %d: %w", ErrTimeout, snap.Frames, n, ctx.Err())
		case <-ticker.C:
		}
	}
}
