// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/config"
	"github.com/clubforge/fantrack/internal/orchestrator"
)

// Server is the thin HTTP surface over the orchestrator. Presentation
// lives elsewhere; this only hands out derived rows, warnings and cache
// admin operations.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
	orch       *orchestrator.Orchestrator
	startTime  time.Time
}

// NewServer wires the routes.
func NewServer(cfg *config.Config, logger *zap.Logger, orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		orch:      orch,
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/clubs/{club}/datasets/{dataset}", s.handleGetDataset)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/invalidate", s.handleInvalidate)
	})
}

// Start blocks serving HTTP until shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router (tests).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	club := chi.URLParam(r, "club")
	dataset := chi.URLParam(r, "dataset")

	res, err := s.orch.Load(r.Context(), club, dataset)
	if err != nil {
		s.logger.Warn("load failed",
			zap.String("club", club),
			zap.String("dataset", dataset),
			zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.CacheStats())
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	club := r.URL.Query().Get("club")
	dataset := r.URL.Query().Get("dataset")

	if club == "" && dataset == "" {
		s.orch.InvalidateAll()
	} else if club != "" && dataset != "" {
		s.orch.Invalidate(club, dataset)
	} else {
		s.writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": "need both club and dataset, or neither"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}
