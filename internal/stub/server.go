// Package stub is a local stand-in for the generation service. It answers
// the same routes with a rendered fixture instead of model output, which
// makes the full generate cycle usable offline and in tests.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/simonhull/hatch/internal/session"
	"github.com/simonhull/hatch/pkg/logger"
)

// StatusMessage is returned by GET /.
const StatusMessage = "hatch stub service is running"

// Server serves fixture scaffolds over HTTP.
type Server struct {
	fixture  *Fixture
	renderer *Renderer
	logger   logger.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// Option customizes a Server.
type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for fixture.
func New(fixture *Fixture, opts ...Option) *Server {
	s := &Server{
		fixture:  fixture,
		renderer: NewRenderer(),
		logger:   logger.NewSilentLogger(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatch_stub_requests_total",
				Help: "Stub service requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	s.registry.MustRegister(s.requests)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.health)
	r.Post("/generate", s.generate)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("stub service listening", logger.F("addr", addr), logger.F("fixture", s.fixture.Name))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "/", http.StatusOK, map[string]string{"status": StatusMessage})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req scaffold.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("invalid request body", logger.F("error", err))
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing 'input' field")
		return
	}
	if req.SessionID == "" {
		req.SessionID = session.Default
	}

	data := TemplateData{
		SessionID: req.SessionID,
		Input:     req.Prompt,
		Feature:   FeatureName(req.Prompt),
	}
	desc, err := s.fixture.Render(s.renderer, data)
	if err != nil {
		s.logger.Error("fixture render failed", logger.F("error", err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("scaffold generated",
		logger.F("session", req.SessionID),
		logger.F("feature", data.Feature),
		logger.F("files", len(desc.Files)),
		logger.F("request_id", middleware.GetReqID(r.Context())))
	s.writeJSON(w, "/generate", http.StatusOK, desc)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, "/generate", code, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, code int, v any) {
	s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", logger.F("error", err))
	}
}
