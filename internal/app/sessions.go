package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/combatpower/internal/domain/dedupe"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/session"
	"github.com/okian/combatpower/internal/domain/types"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

// FrameStatus tells a submitter what happened to a frame.
type FrameStatus int

// Frame submission outcomes.
const (
	FrameAccepted FrameStatus = iota
	FrameDuplicate
)

// Frozen is the result of freezing a session.
type Frozen struct {
	SessionID  string `json:"session_id"`
	TotalPower int    `json:"total_power"`
	PeakTotal  int    `json:"peak_total"`
	// Frames counts the frames folded before the freeze. Frames still
	// queued at that point are discarded.
	Frames     int64  `json:"frames"`
}

// Compute scores one frame without touching any session.
func (s *Service) Compute(ctx context.Context, lm []pose.Landmark, g scoring.Gender) scoring.RawStats {
	start := time.Now()
	raw := s.scorer.Score(lm, g)
	s.recordScored(raw, len(lm), start)
	s.logger.Debug(ctx, "computed", logger.Int("total_power", raw.TotalPower))
	return raw
}

// StartSession opens a measurement session.
func (s *Service) StartSession(ctx context.Context, g scoring.Gender, player int) (types.SessionSnapshot, error) {
	sess, err := s.sessions.Start(g, player)
	if err != nil {
		return types.SessionSnapshot{}, fmt.Errorf("start session: %w", err)
	}
	metrics.RecordSessionStarted()
	s.updateSessionGauge()
	s.logger.Debug(ctx, "session started",
		logger.String("session_id", sess.ID()),
		logger.String("gender", string(sess.Gender())),
	)
	return sess.Snapshot(), nil
}

// Session returns the snapshot of a live session.
func (s *Service) Session(_ context.Context, id string) (types.SessionSnapshot, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return types.SessionSnapshot{}, fmt.Errorf("session %s: %w", id, err)
	}
	return sess.Snapshot(), nil
}

// SubmitFrame queues a frame for asynchronous folding. A (session, seq) pair
// already seen is reported as FrameDuplicate and not queued again.
func (s *Service) SubmitFrame(ctx context.Context, id string, seq int64, lm []pose.Landmark) (FrameStatus, error) {
	q, _, err := s.running()
	if err != nil {
		return 0, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return 0, fmt.Errorf("submit frame: %w", err)
	}
	if sess.Frozen() {
		return 0, fmt.Errorf("submit frame: %w", session.ErrSessionFrozen)
	}

	key := dedupe.FrameKey(id, seq)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordFrameDuplicate()
		return FrameDuplicate, nil
	}
	e := model.FrameEvent{SessionID: id, Seq: seq, Landmarks: lm, TS: s.now()}
	if !q.Enqueue(ctx, e) {
		s.deduper.Unrecord(ctx, key)
		return 0, fmt.Errorf("submit frame: %w", ErrBackpressure)
	}
	return FrameAccepted, nil
}

// Process folds a queued frame into its session. The worker pool calls it
// with the frames of one session in submission order.
func (s *Service) Process(ctx context.Context, e model.FrameEvent) error { //nolint:gocritic // hugeParam: matches the worker signature
	_, err := s.FoldFrame(ctx, e.SessionID, e.Landmarks)
	return err
}

// FoldFrame scores lm and advances the session's stabilizer synchronously.
func (s *Service) FoldFrame(ctx context.Context, id string, lm []pose.Landmark) (session.Frame, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.Frame{}, fmt.Errorf("fold frame: %w", err)
	}
	start := time.Now()
	f, err := sess.Fold(s.engine(), lm)
	if err != nil {
		return session.Frame{}, fmt.Errorf("fold frame: %w", err)
	}
	s.recordScored(f.Raw, len(lm), start)
	if f.Report.Rejected > 0 {
		metrics.RecordOutliersRejected(f.Report.Rejected)
		s.logger.Debug(ctx, "outliers rejected",
			logger.String("session_id", id),
			logger.Int("rejected", f.Report.Rejected),
		)
	}
	if f.Report.Held {
		metrics.RecordStabilizerHold()
	}
	if f.Report.Clamped {
		metrics.RecordRateLimited()
	}
	return f, nil
}

// ResetSession clears the stabilizer history of a session.
func (s *Service) ResetSession(_ context.Context, id string) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := sess.Reset(s.engine()); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// FreezeSession fixes the session's final score at the latest smoothed total.
// Freezing again returns the same result.
func (s *Service) FreezeSession(ctx context.Context, id string) (Frozen, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return Frozen{}, fmt.Errorf("freeze session: %w", err)
	}
	wasFrozen := sess.Frozen()
	baseline := int(math.Floor(s.scorer.Constants().Baseline + 0.5))
	final, peak := sess.Freeze(baseline, s.now())
	frames := sess.Snapshot().Frames
	if !wasFrozen {
		metrics.RecordSessionFrozen()
		s.logger.Info(ctx, "session frozen",
			logger.String("session_id", id),
			logger.Int("total_power", final),
			logger.Int("peak_total", peak),
			logger.Int64("frames", frames),
		)
	}
	return Frozen{SessionID: id, TotalPower: final, PeakTotal: peak, Frames: frames}, nil
}

// EndSession discards a session.
func (s *Service) EndSession(_ context.Context, id string) error {
	if err := s.sessions.End(id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.updateSessionGauge()
	return nil
}

func (s *Service) recordScored(raw scoring.RawStats, n int, start time.Time) {
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordFrameScored(raw.TotalPower, n < pose.NumLandmarks)
}
