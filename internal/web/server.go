// Package web is the front server: it prefetches the default listing of a tag
// route and serves the dehydrated cache, as an HTML page embedding the snapshot
// or as JSON for clients that hydrate it themselves.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/notehub/internal/hydration"
	"github.com/starford/notehub/internal/querycache"
)

const defaultPrefetchTimeout = 5 * time.Second

// Server renders tag routes.
type Server struct {
	lister          hydration.Lister
	logger          *slog.Logger
	registry        *prometheus.Registry
	metrics         *querycache.Metrics
	prefetchTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRegistry sets the registry exposed on /metrics.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithPrefetchTimeout bounds the prefetch done for each page.
func WithPrefetchTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.prefetchTimeout = d
	}
}

// NewServer creates a Server listing notes through l.
func NewServer(l hydration.Lister, opts ...Option) *Server {
	s := &Server{
		lister:          l,
		logger:          slog.Default(),
		prefetchTimeout: defaultPrefetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s.metrics = querycache.NewMetrics(s.registry)
	return s
}

// Router returns the HTTP handler of the server.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", Health)
	r.Get("/health/ready", Health)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/notes/filter/"+hydration.AllSlug, http.StatusFound)
	})
	r.Get("/notes/filter", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/notes/filter/"+hydration.AllSlug, http.StatusFound)
	})
	r.Get("/notes/filter/*", s.filterPage)
	return r
}

// Health answers liveness and readiness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// filterPage prefetches into a request-scoped cache so that no request sees
// another's data. A failed prefetch still renders; the client fetches on mount.
func (s *Server) filterPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "*")
	tag := hydration.TagFromSlug(slug)

	cache := querycache.New(
		querycache.WithLogger(s.logger),
		querycache.WithMetrics(s.metrics),
	)
	defer cache.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.prefetchTimeout)
	err := hydration.Prefetch(ctx, cache, s.lister, tag)
	cancel()
	if err != nil {
		s.logger.Warn("web: prefetch failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
	}

	snap := hydration.Dehydrate(cache)
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := hydration.Encode(w, snap); err != nil {
			s.logger.Error("web: write snapshot", slog.String("error", err.Error()))
		}
		return
	}

	page, err := newPageData(tag, snap)
	if err != nil {
		s.logger.Error("web: build page", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, page); err != nil {
		s.logger.Error("web: render page", slog.String("error", err.Error()))
	}
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
