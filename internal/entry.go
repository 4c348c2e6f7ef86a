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

	"github.com/varga/laguz/internal/api"
	"github.com/varga/laguz/internal/assist"
	"github.com/varga/laguz/internal/editor"
	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/mcpserver"
	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/pagestore"
	"github.com/varga/laguz/internal/storage"
	"github.com/varga/laguz/internal/templates"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("graph_path", cfg.Graph.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure graph directory exists.
	if err := os.MkdirAll(cfg.Graph.Path, 0o755); err != nil {
		return fmt.Errorf("create graph dir: %w", err)
	}

	// Initialize storage.
	fs, err := storage.NewFS(cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, fs, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Change feed broker.
	throttle := cfg.Graph.GraphUpdateThrottle
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	broker := notify.NewBroker(throttle)
	defer broker.Close()

	// Build the editing stack.
	svc := pageservice.NewService(fs, db)
	store := pagestore.NewStore(svc, broker)
	bus := editor.NewBus(store, svc, broker, logger)
	tmpl := templates.NewManager(fs, svc)
	ctrl := assist.NewController(bus, store,
		assist.IndexSearcher{Pages: svc},
		assist.ServiceMeta{Pages: svc},
		tmpl, logger)

	apiRouter := api.NewRouter(api.Deps{
		Pages:     svc,
		Store:     store,
		Bus:       bus,
		Assist:    ctrl,
		Templates: tmpl,
		Broker:    broker,
		GraphRoot: cfg.Graph.Path,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Media files (unauthenticated, referenced from rendered markdown).
	r.Get("/assets/{filename}", api.AssetsHandler(cfg.Graph.Path, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher feeding the change broker and the index.
	g.Go(func() error {
		return index.Watch(gCtx, db, fs, cfg.Graph.Path, logger, func(kind, pageID string) {
			broker.PublishPage(kind, pageID)
		})
	})

	// React to block changes by refreshing dynamic content on cached pages.
	g.Go(func() error {
		bus.Run(gCtx)
		return nil
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same graph and index.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs go to stderr: stdout belongs to the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Graph.Path, 0o755); err != nil {
		return fmt.Errorf("create graph dir: %w", err)
	}

	fs, err := storage.NewFS(cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, fs, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := pageservice.NewService(fs, db)
	return mcpserver.New(svc, fs).ServeStdio()
}
