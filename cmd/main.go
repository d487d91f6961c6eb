package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/combatpower/internal/adapters/http/api"
	"github.com/okian/combatpower/internal/adapters/http/site"
	"github.com/okian/combatpower/internal/adapters/http/swagger"
	"github.com/okian/combatpower/internal/adapters/ws"
	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/config"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional YAML file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
		metrics.WithConstLabels(cfg.Metrics.Labels),
	)

	svc := service.New(service.WithConfig(cfg), service.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	if path := os.Getenv(config.EnvFile); path != "" {
		go func() {
			err := config.Watch(ctx, path, func(next *config.Config) {
				if err := svc.Apply(ctx, next); err != nil {
					log.Warn(ctx, "config reload rejected", logger.Error(err))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn(ctx, "config watch stopped", logger.Error(err))
			}
		}()
	}

	go startSystemMetricsUpdater(ctx)

	hub := ws.New(svc)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newRouter mounts every transport on one chi router.
func newRouter(ctx context.Context, svc *service.Service, hub *ws.Handler) chi.Router {
	r := api.NewRouter()
	site.Register(ctx, r)
	swagger.Register(ctx, r)
	api.NewServer(svc).Register(ctx, r)
	r.Get("/ws/measure", hub.ServeHTTP)
	return r
}

// startSystemMetricsUpdater refreshes the runtime gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
