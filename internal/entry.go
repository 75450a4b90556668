// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/starford/marksync/internal/api"
	"github.com/starford/marksync/internal/journal"
	"github.com/starford/marksync/internal/mcpserver"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/reconcile"
	"github.com/starford/marksync/internal/sse"
	"github.com/starford/marksync/internal/storage"
	"github.com/starford/marksync/internal/syncservice"
	"github.com/starford/marksync/internal/trigger"
	"github.com/starford/marksync/internal/vault"
)

// engine is the wiring shared by every command.
type engine struct {
	cfg     *Config
	logger  *slog.Logger
	journal *journal.DB
	broker  *sse.Broker
	svc     *syncservice.Service
}

func (e *engine) Close() {
	e.broker.Close()
	if err := e.journal.Close(); err != nil {
		e.logger.Warn("journal close failed", slog.String("error", err.Error()))
	}
}

func newEngine(opts ...Option) (*application, *engine, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("notes_folder", cfg.Vault.NotesFolder),
		slog.String("timeline_path", cfg.Vault.TimelinePath),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.LogLevel().String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := journal.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init journal: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)

	timelines := vault.NewTimelineStore(store)
	rec := reconcile.New(vault.NewSource(store), timelines, reconcile.Paths{
		Scope:    cfg.Vault.NotesFolder,
		Timeline: cfg.Vault.TimelinePath,
	}, logger)

	svc := syncservice.New(rec, timelines, cfg.Sync, logger,
		syncservice.WithJournal(db, cfg.SQLite.Keep),
		syncservice.WithPublisher(broker),
	)

	return app, &engine{
		cfg:     cfg,
		logger:  logger,
		journal: db,
		broker:  broker,
		svc:     svc,
	}, nil
}

// Run starts the daemon: an initial cycle, the file watcher, the interval
// trigger and the HTTP API, until ctx is cancelled or a shutdown signal
// arrives.
func Run(ctx context.Context, opts ...Option) error {
	_, e, err := newEngine(opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg, logger := e.cfg, e.logger

	if _, err := e.svc.RunNow(ctx, "startup", "", false); err != nil {
		logger.Warn("initial cycle failed", slog.String("error", err.Error()))
	}

	coalescer := trigger.NewCoalescer(cfg.Schedule.Debounce, e.svc.Trigger, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !e.svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var limiter *rate.Limiter
	if cfg.App.HTTP.SyncRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.App.HTTP.SyncRate), max(cfg.App.HTTP.SyncBurst, 1))
	}
	r.Mount("/api", api.NewRouter(e.svc, coalescer, limiter, cfg.Auth.AuthEnabled(), cfg.Auth.Token, e.broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coalescer.Run(gCtx)
	})

	if cfg.Schedule.AutoSync {
		g.Go(func() error {
			return trigger.Watch(gCtx, cfg.Vault.Path, cfg.Vault.TimelinePath, logger, func(req trigger.Request) {
				e.broker.PublishChange(req.Path)
				coalescer.Request(req)
			})
		})
		if cfg.Schedule.Interval != "" {
			g.Go(func() error {
				return trigger.Every(gCtx, cfg.Schedule.Interval, logger, coalescer.Request)
			})
		}
	}

	if cfg.App.HTTP.Enabled {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cfg.App.HTTP.Enabled {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunOnce runs a single cycle and returns its result. An empty dir selects
// the configured default direction.
func RunOnce(ctx context.Context, dir models.Direction, dryRun bool, opts ...Option) (*models.CycleResult, error) {
	_, e, err := newEngine(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.svc.RunNow(ctx, "cli", dir, dryRun)
}

// ServeMCP runs the MCP server on stdin/stdout. Logs go to stderr unless
// another writer is configured.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, e, err := newEngine(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer e.Close()
	return mcpserver.New(e.svc, app.version).ServeStdio()
}
