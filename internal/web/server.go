package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/config"
	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/web/handlers"
	"github.com/shl-matching/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     config.WebConfig
	outcome    *match.Outcome
	runs       handlers.RunStore
	httpServer *http.Server
	router     *mux.Router
	logger     *zap.Logger
}

// NewServer creates a new web server over the outcome of a matching pass.
// runs may be nil, in which case the run history routes are not registered.
func NewServer(cfg config.WebConfig, outcome *match.Outcome, runs handlers.RunStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := &Server{
		config:  cfg,
		outcome: outcome,
		runs:    runs,
		logger:  logger,
	}

	// Setup routes
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	resultsHandler := handlers.NewResultsHandler(s.outcome, s.logger)

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/stats", resultsHandler.GetStats).Methods("GET")
	api.HandleFunc("/results", resultsHandler.ListResults).Methods("GET")
	api.HandleFunc("/results/{id}", resultsHandler.GetResult).Methods("GET")
	api.HandleFunc("/resolve", resultsHandler.Resolve).Methods("POST", "OPTIONS")

	// Run history endpoints (only with a database)
	if s.runs != nil {
		runsHandler := &handlers.RunsHandler{Store: s.runs, Logger: s.logger}
		api.HandleFunc("/runs/{id}", runsHandler.GetRun).Methods("GET")
		api.HandleFunc("/runs/{id}/results", runsHandler.ListRunResults).Methods("GET")
	}

	// Operational endpoints
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Apply middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.logger))
	api.Use(middleware.Authentication(s.config.APIKey))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start server in background
	go func() {
		s.logger.Info("Starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("Server stopped")
	return nil
}
