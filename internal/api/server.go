package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scout/internal/research"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/store"
)

// Research is the thread service the API drives.
type Research interface {
	Start(ctx context.Context, threadID, link string) (*research.Result, error)
	Ask(ctx context.Context, threadID, question string) (*research.Reply, error)
	Thread(threadID string) (state.Session, error)
	Report(ctx context.Context, id uuid.UUID) (*store.ReportRecord, error)
	ThreadReports(ctx context.Context, threadID string) ([]uuid.UUID, error)
	Stats() research.Stats
}

type Server struct {
	router   *chi.Mux
	port     int
	research Research
	logger   *slog.Logger
	http     *http.Server
}

func NewServer(port int, apiToken string, svc Research, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		research: svc,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/scout/status", s.status)

	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/api/v1/threads", s.createThread)
		r.Get("/api/v1/threads/{threadID}", s.getThread)
		r.Post("/api/v1/threads/{threadID}/messages", s.addMessage)
		r.Get("/api/v1/threads/{threadID}/reports", s.listThreadReports)
		r.Get("/api/v1/reports/{reportID}", s.getReport)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	stats := s.research.Stats()
	status := "ready"
	if !stats.Configured {
		status = "unconfigured"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":   "scout",
		"status":  status,
		"threads": stats.Threads,
	})
}

func writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
