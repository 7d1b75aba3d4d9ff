// Package server exposes waits and one-shot completion checks over a
// JSON REST API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/lister"
	"github.com/me/ecswait/internal/scheduler"
	"github.com/me/ecswait/internal/store"
)

// Server is the ecswait REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	scheduler scheduler.Scheduler
	lister    lister.TaskLister
	env       map[string]string // exposed to templated fields as env
	started   bool
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithTemplateEnv sets the variables templated fields can read through env.
func WithTemplateEnv(env map[string]string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// New creates a new Server with all routes registered.
// sched may be nil if no scheduling is desired (e.g. in tests).
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, l lister.TaskLister, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		scheduler: sched,
		lister:    l,
		env:       map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	s.started = true
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// One-shot checks
		r.Post("/checks", s.handleCheck)

		// Waits
		r.Route("/waits", func(r chi.Router) {
			r.Get("/", s.handleListWaits)
			r.Post("/", s.handleCreateWait)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWait)
				r.Put("/cancel", s.handleCancelWait)
			})
		})
	})
}
