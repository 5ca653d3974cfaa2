// Package api serves the read-only catalog API and hosts the compiled
// single-page front end.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"newhome-tracker/metrics"
	"newhome-tracker/storage"
	"newhome-tracker/utils"
)

// Config holds the HTTP-facing settings.
type Config struct {
	// StaticRoot is the directory of the compiled front end. Hosting is
	// disabled when it does not exist.
	StaticRoot string
	// FrontendOrigins are allowed by CORS. Empty allows any origin.
	FrontendOrigins []string
	// ChangeWindow is how far back a price change counts as recent.
	ChangeWindow time.Duration
}

// Option customizes a Server.
type Option func(*Server)

// WithPlansCache serves /api/plans from c when it holds a payload.
func WithPlansCache(c storage.PlansCache) Option { return func(s *Server) { s.cache = c } }

// WithMetrics records request metrics on m and exposes /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithClock replaces wall time for the recent-change window.
func WithClock(c utils.Clock) Option { return func(s *Server) { s.clock = c } }

// Server answers catalog reads. It never writes to the store.
type Server struct {
	store   storage.ListingStore
	cache   storage.PlansCache
	metrics *metrics.Metrics
	logger  *utils.Logger
	clock   utils.Clock
	cfg     Config
	static  string
}

// NewServer creates a Server over store. Front-end hosting is enabled only
// when cfg.StaticRoot is an existing directory.
func NewServer(store storage.ListingStore, logger *utils.Logger, cfg Config, opts ...Option) *Server {
	if cfg.ChangeWindow <= 0 {
		cfg.ChangeWindow = 24 * time.Hour
	}
	s := &Server{store: store, logger: logger, clock: utils.RealClock{}, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.StaticRoot != "" {
		if info, err := os.Stat(cfg.StaticRoot); err == nil && info.IsDir() {
			s.static = cfg.StaticRoot
		} else {
			logger.Warn("[api] Static root %q not found, front-end hosting disabled", cfg.StaticRoot)
		}
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/plans", s.handlePlans)
	r.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.NotFound(s.handleFrontend)
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.FrontendOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.FrontendOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
