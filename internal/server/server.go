// Package server assembles the dashboard router and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"salesdash/internal/dashboard"
	handlers "salesdash/internal/handlers/dashboard"
	httpx "salesdash/internal/http"
	"salesdash/internal/templates"
	"salesdash/internal/version"
)

// DefaultShutdownTimeout bounds how long in-flight requests may take on shutdown
const DefaultShutdownTimeout = 10 * time.Second

// Dependencies are the components the routes are served from
type Dependencies struct {
	Controller *dashboard.Controller
	Renderer   *templates.Renderer
	Static     fs.FS
}

// Config holds server settings
type Config struct {
	Addr            string
	EditorPath      string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// Server is the dashboard web service
type Server struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

// New builds the router
func New(logger zerolog.Logger, config Config) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(RequestLogger(&logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))

	if config.Dependencies.Static != nil {
		fileServer := http.FileServer(http.FS(config.Dependencies.Static))
		router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, handlers.DashboardPath, http.StatusTemporaryRedirect)
	})
	router.Get("/api/health", handleHealth)

	info := version.Get()
	handlers.New(
		config.Dependencies.Controller,
		config.Dependencies.Renderer,
		config.EditorPath,
		info.Version,
	).RegisterRoutes(router)

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	return &Server{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("starting server")
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("graceful shutdown failed")
			return s.server.Close()
		}
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Version,
	})
}
