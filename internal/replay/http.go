package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/stabilizer"
)

// Sentinel errors of the online replay.
var (
	ErrUnhealthy = errors.New("service unhealthy")
	ErrStatus    = errors.New("unexpected status")
	ErrMismatch  = errors.New("server score differs from local score")
	ErrTimeout   = errors.New("frames not folded in time")
)

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type snapshotResponse struct {
	SessionID string `json:"session_id"`
	Frames    int64  `json:"frames"`
	PeakTotal int    `json:"peak_total"`
	Frozen    bool   `json:"frozen"`
}

type frozenResponse struct {
	TotalPower int `json:"total_power"`
	PeakTotal  int `json:"peak_total"`
}

type frameRequest struct {
	Seq       int64           `json:"seq"`
	Landmarks []pose.Landmark `json:"landmarks"`
}

type saveRequest struct {
	Name      string          `json:"name"`
	Score     int             `json:"score"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	RequestID string          `json:"request_id"`
}

type saveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
	Rank    int    `json:"rank"`
}

type serverTuning struct {
	Constants  scoring.Constants `json:"score_constants"`
	Stabilizer stabilizer.Tuning `json:"stabilizer"`
}

// client is a small JSON client for the combat power API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

// do sends body as JSON (when non-nil), decodes the reply into out (when
// non-nil) and returns the status code. Statuses outside want are errors.
func (c *client) do(ctx context.Context, method, path string, body, out any, want ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, err)
	}
	ok := false
	for _, w := range want {
		ok = ok || resp.StatusCode == w
	}
	if !ok {
		return resp.StatusCode, fmt.Errorf("%s %s: %w %d: %s", method, path, ErrStatus, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
