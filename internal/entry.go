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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notehub/internal/api"
	"github.com/starford/notehub/internal/browse"
	"github.com/starford/notehub/internal/gateway"
	"github.com/starford/notehub/internal/hydration"
	"github.com/starford/notehub/internal/index"
	"github.com/starford/notehub/internal/mcpserver"
	"github.com/starford/notehub/internal/noteservice"
	"github.com/starford/notehub/internal/notesync"
	"github.com/starford/notehub/internal/querycache"
	"github.com/starford/notehub/internal/web"
)

const shutdownTimeout = 10 * time.Second

// RunServe starts the front server rendering tag routes from the remote service.
func RunServe(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("remote_url", cfg.Remote.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	srv := web.NewServer(gw,
		web.WithLogger(logger),
		web.WithPrefetchTimeout(cfg.Front.PrefetchTimeout),
	)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: srv.Router(),
	}
	return serveHTTP(ctx, logger, httpServer)
}

// RunMock starts the local notes service backed by SQLite, optionally
// seeded from and kept in sync with a fixtures file.
func RunMock(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config.Mock

	logger := newLogger(os.Stdout, app.config.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("fixtures_path", cfg.Fixtures.Path),
		slog.String("auth_mode", cfg.Auth.Mode))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if cfg.Fixtures.Path != "" {
		res, err := index.Sync(db, cfg.Fixtures.Path, logger)
		if err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		} else {
			logger.Info("fixtures loaded",
				slog.Int("upserted", res.Upserted),
				slog.Int("removed", res.Removed),
				slog.Int("skipped", res.Skipped))
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Address(),
		Handler: newMockRouter(noteservice.NewService(db), cfg.Auth),
	}

	var background []func(context.Context) error
	if cfg.Fixtures.Path != "" && cfg.Fixtures.Watch {
		background = append(background, func(ctx context.Context) error {
			if err := index.Watch(ctx, db, cfg.Fixtures.Path, logger, nil); err != nil {
				logger.Warn("fixtures watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return serveHTTP(ctx, logger, httpServer, background...)
}

// RunMCP serves the notes tools over stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	cache := querycache.New(querycache.WithLogger(logger))
	defer cache.Close()

	logger.Info("MCP server starting", slog.String("remote_url", cfg.Remote.BaseURL))
	if err := mcpserver.New(gw, cache, logger).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunBrowse opens the interactive notes view on the configured streams.
// When a front URL is configured the view starts from its snapshot.
func RunBrowse(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	cache := querycache.New(querycache.WithLogger(logger))
	defer cache.Close()

	slug := app.tag
	if slug == "" {
		slug = hydration.AllSlug
	}
	tag := hydration.TagFromSlug(slug)

	if cfg.Front.URL != "" {
		url := strings.TrimRight(cfg.Front.URL, "/") + "/notes/filter/" + slug
		loadCtx, cancel := context.WithTimeout(ctx, cfg.Front.PrefetchTimeout)
		snap, err := hydration.Load(loadCtx, url, nil)
		cancel()
		if err != nil {
			logger.Warn("snapshot unavailable, starting cold", slog.String("error", err.Error()))
		} else {
			hydration.Hydrate(cache, snap)
			logger.Debug("snapshot hydrated", slog.Int("entries", len(snap.Entries)))
		}
	}

	b := browse.New(cache, gw, tag, app.out,
		browse.WithLogger(logger),
		browse.WithControllerOptions(
			notesync.WithDebounceWindow(cfg.Sync.Debounce),
			notesync.WithRefetchOnMount(cfg.Sync.RefetchOnMount),
		),
	)
	return b.Run(ctx, app.in)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func newGateway(cfg *Config, logger *slog.Logger) (*gateway.Client, error) {
	gw, err := gateway.New(cfg.Remote.BaseURL,
		gateway.WithToken(cfg.Remote.Token),
		gateway.WithTimeout(cfg.Remote.Timeout),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init gateway: %w", err)
	}
	return gw, nil
}

func newMockRouter(svc *noteservice.Service, auth AuthConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", web.Health)
	r.Get("/health/ready", web.Health)

	r.Mount("/", api.NewRouter(svc, auth.AuthEnabled(), auth.Token))
	return r
}

// serveHTTP runs httpServer and the background tasks until a shutdown signal
// or ctx is done, then shuts the server down gracefully.
func serveHTTP(ctx context.Context, logger *slog.Logger, httpServer *http.Server, background ...func(context.Context) error) error {
	logger.Info("Server starting...", slog.String("http_address", httpServer.Addr))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	for _, task := range background {
		g.Go(func() error {
			return task(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop background tasks.
		cancel()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
