// Package server provides the HTTP server and routing for LedgerKeep.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/database"
	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
	"github.com/ledgerkeep/ledgerkeep/internal/recurring"
	"github.com/ledgerkeep/ledgerkeep/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	LedgerDB  *database.DB
	Rules     *recurring.Repository
	Sweeper   *recurring.Sweeper
	Tracker   *jobs.Tracker
	BackupJob *scheduler.BackupJob // nil when backups are not configured
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	ledgerDB  *database.DB
	rules     *recurring.Repository
	sweeper   *recurring.Sweeper
	tracker   *jobs.Tracker
	backupJob *scheduler.BackupJob
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		ledgerDB:  cfg.LedgerDB,
		rules:     cfg.Rules,
		sweeper:   cfg.Sweeper,
		tracker:   cfg.Tracker,
		backupJob: cfg.BackupJob,
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
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health/detailed", s.handleDetailedHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/recurring-sweep", s.handleTriggerSweep)
			r.Post("/backup", s.handleTriggerBackup)
			r.Get("/status", s.handleJobsStatus)
			r.Get("/history", s.handleJobsHistory)
			r.Get("/stats", s.handleJobsStats)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Get("/{id}", s.handleGetRule)
		})
	})
}

// Router returns the underlying router. Used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
