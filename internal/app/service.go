// Package service ties the scoring pipeline, the session registry, the frame
// queue and the ranking store together behind the operations the transports
// expose.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/combatpower/internal/adapters/images"
	eventqueue "github.com/okian/combatpower/internal/adapters/mq/queue"
	workerpool "github.com/okian/combatpower/internal/adapters/mq/worker"
	"github.com/okian/combatpower/internal/adapters/repository"
	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/internal/domain/dedupe"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/session"
	"github.com/okian/combatpower/internal/domain/stabilizer"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Service implements the operations behind the HTTP and WebSocket transports.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config
	now func() time.Time

	scorer     *scoring.Scorer
	stabilizer *stabilizer.Stabilizer
	sessions   *session.Registry

	deduper dedupe.Deduper
	saved   sync.Map // save dedupe key -> SaveResult
	saves   singleflight.Group

	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool
	repo  repository.Repository
	imgs  *images.Store

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithRepository injects a ranking store instead of opening the configured one.
// The service closes it on Stop.
func WithRepository(repo repository.Repository) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithClock overrides time.Now for sessions and stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.scorer = scoring.NewScorer(scoring.WithConstants(s.cfg.Score))
	s.stabilizer = stabilizer.New(stabilizer.WithTuning(s.cfg.Stabilizer))
	s.sessions = session.NewRegistry(
		session.WithTTL(s.cfg.SessionTTL),
		session.WithClock(s.now),
		session.WithEvictHook(func(n int) {
			metrics.RecordSessionsExpired(n)
			s.updateSessionGauge()
		}),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.cfg.DedupeSize),
		dedupe.WithEvictHook(func(key string) { s.saved.Delete(key) }),
	)
	return s
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start opens the ranking store and the image directory and starts the
// frame workers and the session janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting combat power service...")

	if s.repo == nil {
		repo, err := repository.Open(ctx, s.cfg.StoreBackend,
			repository.WithDataDir(s.cfg.DataDir),
			repository.WithSQLitePath(s.cfg.SQLitePath),
			repository.WithMetricsUpdateInterval(s.cfg.MetricsInterval),
			repository.WithClock(s.now),
		)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		s.repo = repo
	}
	imgs, err := images.New(s.cfg.ImagesDir)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	s.imgs = imgs

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.QueueSize))
	s.pool = workerpool.NewPool(s.cfg.WorkerCount, s.queue, workerpool.ProcessorFunc(s.Process))
	s.pool.Start(runCtx)
	go s.sessions.Run(runCtx)

	metrics.UpdateRankingEntries(s.repo.Count(ctx))
	s.started = true
	s.logger.Info(ctx, "combat power service started",
		logger.String("store", s.repo.Backend()),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.Int("dedupe_size", s.cfg.DedupeSize),
	)
	return nil
}

// Stop drains queued frames, stops the janitor and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping combat power service...")

	var firstErr error
	if err := s.pool.Shutdown(ctx); err != nil {
		firstErr = err
	}
	s.cancel()
	if err := s.repo.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	s.started = false
	s.logger.Info(ctx, "combat power service stopped")
	return firstErr
}

// Apply hot-swaps the score constants and the stabilizer tuning of cfg.
// Settings that need a restart (address, store, queue) are ignored.
func (s *Service) Apply(ctx context.Context, cfg *config.Config) error {
	if err := s.scorer.SetConstants(cfg.Score); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if err := s.stabilizer.SetTuning(cfg.Stabilizer); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	s.mu.Lock()
	next := *s.cfg
	next.Score = cfg.Score.Clone()
	next.Stabilizer = cfg.Stabilizer
	next.Battle = cfg.Battle
	next.DefaultRankingLimit = cfg.DefaultRankingLimit
	next.MaxRankingLimit = cfg.MaxRankingLimit
	next.BattleRankingLimit = cfg.BattleRankingLimit
	s.cfg = &next
	s.mu.Unlock()

	s.logger.Info(ctx, "configuration applied",
		logger.Float64("baseline", cfg.Score.Baseline),
		logger.Int("history_size", cfg.Stabilizer.HistorySize),
	)
	return nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"sessions":        s.sessions.Len(),
		"dedupe_size":     s.deduper.Size(),
		"queue_capacity":  s.cfg.QueueSize,
		"measure_seconds": s.cfg.MeasureDuration.Seconds(),
		"score_constants": s.scorer.Constants(),
		"stabilizer":      s.stabilizer.Tuning(),
	}
	if s.started {
		entries := s.repo.Count(ctx)
		stats["store"] = s.repo.Backend()
		stats["ranking_entries"] = entries
		stats["queue_length"] = s.queue.Len(ctx)
		stats["workers"] = s.pool.Size()
		metrics.UpdateRankingEntries(entries)
	}
	return stats
}

func (s *Service) running() (*eventqueue.InMemoryQueue, repository.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.queue, s.repo, nil
}

func (s *Service) engine() session.Engine {
	return session.Engine{Scorer: s.scorer, Stabilizer: s.stabilizer}
}

func (s *Service) updateSessionGauge() {
	metrics.UpdateSessionsActive(s.sessions.Len())
}
