package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solatis/experiences/internal/core/api"
	"github.com/solatis/experiences/internal/core/config"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HTTPServer manages the JSON HTTP API lifecycle.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	svc    *api.Service
	config *config.ServerConfig
	logger *slog.Logger
}

// NewHTTPServer creates the chi router and the http.Server around it.
func NewHTTPServer(cfg *config.ServerConfig, service *api.Service, logger *slog.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{svc: service, config: cfg, logger: logger}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *HTTPServer) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/evaluate-all", s.handleEvaluateAll)

		r.Post("/events", s.handleEmit)
		r.Get("/events", s.handleEvents)

		r.Get("/experiences", s.handleListExperiences)
		r.Get("/experiences/{id}", s.handleGetExperience)

		r.Delete("/frequency/{id}", s.handleResetFrequency)

		r.Put("/consent", s.handleConsent)
	})

	s.router = r
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start binds listener and serves HTTP requests until Shutdown.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.logger.Info("http server listening", "addr", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	n := 0
	for range s.svc.Engine().Experiences() {
		n++
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"experiences": n,
	})
}

func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req api.EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.svc.Evaluate(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	var req api.EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	decisions, err := s.svc.EvaluateAll(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (s *HTTPServer) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req api.EmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.Emit(r.Context(), req); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, fmt.Errorf("%w: limit must be a non-negative integer", api.ErrInvalidRequest))
			return
		}
		limit = n
	}
	events, err := s.svc.Events(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *HTTPServer) handleListExperiences(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Experiences(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	etag := strconv.Quote(list.ETag)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleGetExperience(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Experience(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleResetFrequency(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetFrequency(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Granted *bool `json:"granted"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Granted == nil {
		s.respondError(w, fmt.Errorf("%w: granted required", api.ErrInvalidRequest))
		return
	}
	s.svc.SetConsent(*req.Granted)
	respondJSON(w, http.StatusOK, map[string]bool{
		"granted":  *req.Granted,
		"required": s.svc.Engine().ConsentRequired(),
	})
}

// decode reads a JSON body into dst. An empty body leaves dst zero.
func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
		return false
	}
	return true
}

func (s *HTTPServer) respondError(w http.ResponseWriter, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
