// Package main is the entrypoint for the alumnitrack API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/alumnitrack/internal/ai"
	"github.com/kiranshivaraju/alumnitrack/internal/api"
	"github.com/kiranshivaraju/alumnitrack/internal/api/handler"
	mw "github.com/kiranshivaraju/alumnitrack/internal/api/middleware"
	"github.com/kiranshivaraju/alumnitrack/internal/cache"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/kiranshivaraju/alumnitrack/internal/coordinator"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/internal/scraper"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	sseHeartbeat    = 15 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"scraper_mode", cfg.Scraper.Mode,
		"notify_backend", cfg.Notify.Backend,
		"ai_provider", cfg.AI.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Progress notifier
	notifier := buildNotifier(cfg.Notify, redisCache)

	// 6. AI summaries and scrape worker
	summarizer, err := ai.NewSummarizer(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI summarizer: %w", err)
	}
	if summarizer != nil {
		slog.Info("AI summarizer initialized", "provider", summarizer.Name())
	}
	worker := buildWorker(cfg.Scraper, summarizer)

	// 7. Coordinator
	pgStore := store.NewPostgresStore(pool)
	coord := coordinator.New(pgStore, redisCache, notifier, worker, coordinatorConfig(cfg.Jobs))

	if cfg.Jobs.ResumeOnStart {
		if _, err := coord.ResumeInterrupted(ctx); err != nil {
			slog.Error("failed to resume interrupted jobs", "error", err)
		}
	}

	// 8. Build router with dependencies
	router := api.NewRouter(api.Dependencies{
		RateLimit:     mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),
		HealthHandler: handler.NewHealthHandler(pgStore, redisCache),

		CreateJob:    handler.NewCreateJobHandler(coord),
		ListJobs:     handler.NewListJobsHandler(coord),
		GetJob:       handler.NewGetJobHandler(coord),
		ProcessJob:   handler.NewProcessJobHandler(coord),
		ListQueue:    handler.NewListQueueHandler(coord),
		RetryJob:     handler.NewRetryJobHandler(coord),
		JobFailures:  handler.NewJobFailuresHandler(coord),
		JobEvents:    handler.NewJobEventsHandler(coord, sseHeartbeat),
		ListProfiles: handler.NewListProfilesHandler(pgStore),
		GetProfile:   handler.NewGetProfileHandler(pgStore),
	})

	// 9. Start HTTP server. No WriteTimeout: event streams stay open for the
	// lifetime of a job.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := newHTTPServer(addr, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	if err := shutdown(srv, coord, shutdownTimeout); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}

// newHTTPServer builds the API server. Request contexts derive from a base
// context that is cancelled when Shutdown starts, which ends open event streams.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)
	return srv
}

type drainer interface {
	Shutdown(ctx context.Context) error
}

// shutdown drains HTTP connections and stops running jobs concurrently,
// both under the same deadline.
func shutdown(srv *http.Server, jobs drainer, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown incomplete", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := jobs.Shutdown(ctx); err != nil {
			return fmt.Errorf("coordinator shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func buildNotifier(cfg config.NotifyConfig, rc *cache.RedisCache) notify.Notifier {
	if cfg.Backend == "redis" {
		slog.Info("progress notifier using redis pub/sub")
		return notify.NewRedisNotifier(rc.Client())
	}
	return notify.NewHub(0)
}

func buildWorker(cfg config.ScraperConfig, summarizer models.Summarizer) scraper.Worker {
	var w scraper.Worker
	switch cfg.Mode {
	case "http":
		limiter := scraper.NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst)
		w = scraper.NewHTTPWorker(cfg.RequestTimeout, cfg.UserAgent, limiter)
	default:
		w = scraper.NewMockWorker(cfg.MockLatency)
	}
	return scraper.WithSummaries(w, summarizer)
}

func coordinatorConfig(cfg config.JobsConfig) coordinator.Config {
	return coordinator.Config{
		ItemDelay:   cfg.ItemDelay,
		ItemTimeout: cfg.ItemTimeout,
		MaxAttempts: cfg.MaxAttempts,
		AutoStart:   cfg.AutoStart,
		LockTTL:     cfg.LockTTL,
		SnapshotTTL: cfg.SnapshotTTL,
	}
}
