// Package server provides the HTTP status API for pricesentry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/market_hours"
	markethourshandlers "github.com/aristath/pricesentry/internal/modules/market_hours/handlers"
	"github.com/aristath/pricesentry/internal/modules/pricing"
	"github.com/aristath/pricesentry/internal/scheduler"
	"github.com/aristath/pricesentry/internal/services"
)

// AlertReader reads persisted alerts
type AlertReader interface {
	Active(ctx context.Context, session domain.Session) ([]domain.Alert, error)
}

// PriceReader exposes the in-memory price cache
type PriceReader interface {
	Entries() []pricing.CacheEntry
	Fresh(symbol string, category domain.Category) (pricing.CacheEntry, bool)
	Len() int
}

// SessionRunner triggers a session run
type SessionRunner interface {
	Run(ctx context.Context, opts services.RunOptions) (*services.RunReport, error)
}

// JobLister reports scheduled jobs
type JobLister interface {
	Jobs() []scheduler.JobStatus
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Calendar *market_hours.Calendar
	Location *time.Location
	Alerts   AlertReader
	Prices   PriceReader
	Runner   SessionRunner
	Jobs     JobLister    // optional
	Metrics  http.Handler // optional, served at /metrics
	Port     int
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
	ctx            context.Context
	cancel         context.CancelFunc
	triggered      sync.Map // domain.Session -> struct{} while a triggered run is active
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Prices, cfg.Jobs),
		ctx:            ctx,
		cancel:         cancel,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", s.cfg.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/alerts", s.handleGetAlerts)
		r.Get("/prices", s.handleGetPrices)
		r.Post("/sessions/{session}/run", s.handleRunSession)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
		})

		marketHoursHandler := markethourshandlers.NewHandler(s.cfg.Calendar, s.cfg.Location, s.log)
		marketHoursHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels triggered runs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancel()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
