// Package server exposes the curator over HTTP: the JSON API, the cron
// triggers, the share intake, the HTML views and the RSS export.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/config"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/ingest"
	"github.com/tkilaker/curator/internal/registry"
	"github.com/tkilaker/curator/internal/tasks"
)

// Deps are the components the handlers call into
type Deps struct {
	DB       *database.DB
	Registry *registry.Registry
	Pipeline *ingest.Pipeline
	Analyzer *classifier.Analyzer
	Tasks    *tasks.Queue
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	db       *database.DB
	registry *registry.Registry
	pipeline *ingest.Pipeline
	analyzer *classifier.Analyzer
	tasks    *tasks.Queue
	config   *config.Config
	logger   *slog.Logger
}

// New creates a new server instance
func New(deps Deps, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   chi.NewRouter(),
		db:       deps.DB,
		registry: deps.Registry,
		pipeline: deps.Pipeline,
		analyzer: deps.Analyzer,
		tasks:    deps.Tasks,
		config:   cfg,
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/admin", s.handleAdmin)
	s.router.Get("/share", s.handleSharePage)
	s.router.Get("/rss.xml", s.handleRSS)

	s.router.Route("/api", func(r chi.Router) {
		// Triggers, guarded by CRON_SECRET when set
		r.Group(func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/cron", s.handleCron)
			r.Post("/cron", s.handleCron)
			r.Get("/cron/ingest", s.handleIngest)
			r.Post("/cron/ingest", s.handleIngest)
			r.Post("/analyze", s.handleAnalyze)
		})

		r.Post("/share", s.handleShare)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Get("/newsletter", s.handleNewsletter)
			r.Post("/mark-read-bulk", s.handleMarkReadBulk)
			r.Post("/{id}/mark-read", s.handleMarkRead)
			r.Post("/{id}/mark-unread", s.handleMarkUnread)
			r.Post("/{id}/category", s.handleSetCategory)
			r.Post("/{id}/reanalyze", s.handleReanalyze)
		})

		r.Get("/tasks/{id}", s.handleTaskStatus)

		r.Get("/feeds", s.handleListFeeds)
		r.Post("/feeds", s.handleAddFeed)
		r.Delete("/feeds/{id}", s.handleDeleteFeed)

		r.Get("/blacklist", s.handleListBlacklist)
		r.Post("/blacklist", s.handleAddKeyword)
		r.Delete("/blacklist/{id}", s.handleDeleteKeyword)
	})

	// Health check
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Router returns the Chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// requireCronSecret rejects trigger calls without the configured bearer token
func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := s.config.CronSecret
		if secret != "" {
			want := "Bearer " + secret
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseID reads a positive integer {id} route parameter
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// wantsHTML reports whether a request came from an HTML form rather than an
// API client, in which case handlers redirect instead of answering JSON.
func wantsHTML(r *http.Request) bool {
	return isFormRequest(r) && r.Header.Get("HX-Request") == ""
}
