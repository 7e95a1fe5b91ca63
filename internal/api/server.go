package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"murmur/internal/config"
	"murmur/internal/jobs"
	"murmur/internal/logging"
	"murmur/internal/store"
)

// Server exposes job submission, stored entries and subtitle helpers over HTTP.
type Server struct {
	cfg      *config.Config
	manager  *jobs.Manager
	store    *store.Store
	hub      *logging.StreamHub
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	listener net.Listener
	server   *http.Server
}

// New wires the routes. st and hub may be nil; the routes backed by them then
// return empty results.
func New(cfg *config.Config, manager *jobs.Manager, st *store.Store, hub *logging.StreamHub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		manager: manager,
		store:   st,
		hub:     hub,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.cfg.Server.Token))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleSubmitJob)
			r.Get("/", s.handleListJobs)
			r.Get("/{id}", s.handleGetJob)
			r.Delete("/{id}", s.handleCancelJob)
			r.Get("/{id}/events", s.handleJobEvents)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Get("/{id}", s.handleGetEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
			r.Put("/{id}/subtitles", s.handleUpdateSubtitles)
			r.Get("/{id}/subtitles.{format}", s.handleExportSubtitles)
		})

		r.Post("/subtitles/split", s.handleSplit)
		r.Post("/timestamps/srt", s.handleTimestamps)
		r.Get("/logs", s.handleLogs)
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on server.bind and serves until ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	if bind == "" {
		return fmt.Errorf("api listen: empty bind address")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, waiting up to five seconds for requests to drain.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		ActiveJobs: s.manager.Active(),
		Model:      s.manager.Model(),
	}
	if s.store != nil {
		resp.Database = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
