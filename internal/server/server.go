// Package server exposes the data quality pipeline over HTTP for
// programmatic intake. Every endpoint is stateless: each request carries
// its own payloads and yields one run report.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataqa/internal/identify"
)

// MaxUploadBytes caps the total size of a multipart request body.
const MaxUploadBytes = 256 << 20

// Options configures the defaults applied to requests that do not
// override them through form fields.
type Options struct {
	Strategy identify.Strategy
	Keys     []string
}

// Server is the HTTP intake server.
type Server struct {
	opts   Options
	router *chi.Mux
	srv    *http.Server
	log    *zap.Logger
}

// New creates a Server with middleware and routes configured.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
		log:    zap.L().With(zap.String("component", "server")),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/check", s.handleCheck)
		r.Post("/drift", s.handleDrift)
	})
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start listens on the given port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("starting server", zap.Int("port", port))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// writeJSON encodes v as JSON with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.log.Warn("request failed", zap.Int("status", status), zap.String("error", message))
	s.writeJSON(w, status, map[string]string{"error": message})
}
