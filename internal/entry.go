// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notelinker/internal/api"
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/sse"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vault"
)

// env is the wiring shared by every command.
type env struct {
	cfg    *Config
	logger *slog.Logger
	out    io.Writer
	store  *storage.FS
	db     *index.DB
	svc    *linkservice.Service
}

// setup builds the logger, storage, link cache and link service described
// by the options. The returned func releases them.
func setup(opts []Option, svcOpts ...linkservice.Option) (*env, func(), error) {
	app := resolve(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	pc, err := vault.NewParseCache(cfg.Linker.ParseCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	svcOpts = append([]linkservice.Option{
		linkservice.WithCache(db),
		linkservice.WithParseCache(pc),
	}, svcOpts...)
	svc := linkservice.New(store, cfg.Linker.Settings(), logger, svcOpts...)

	e := &env{cfg: cfg, logger: logger, out: app.out, store: store, db: db, svc: svc}
	return e, func() { _ = db.Close() }, nil
}

// Run starts the HTTP server, the vault watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	e, cleanup, err := setup(opts, linkservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, logger := e.cfg, e.logger

	// Run initial sync.
	if err := index.Sync(e.db, e.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	if _, err := e.svc.Load(ctx); err != nil {
		logger.Warn("initial corpus load failed", slog.String("error", err.Error()))
	}

	// Build API router.
	apiRouter := api.NewRouter(e.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := e.svc.Snapshot(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start file watcher: a changed note invalidates the snapshot and is
	// announced over SSE.
	watcher := index.NewWatcher(e.db, e.store, cfg.Vault.Path, logger, func(ev index.Event) {
		e.svc.HandleEvent(ev)
		broker.NoteChanged(ev)
	})
	g.Go(func() error {
		return watcher.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		logger.Info("Shutting down server...")

		// Open SSE streams would otherwise hold Shutdown until its timeout.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop() // stops the watcher

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
