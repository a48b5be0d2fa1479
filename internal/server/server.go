// Package server provides the HTTP server for an HCX participant node.
//
// The server exposes the following API surfaces:
//
// # Exchange
//
//   - POST {basePath}/preauth/submit - Compose, encrypt and dispatch a
//     pre-authorization claim. Responds with {request, acknowledgement}.
//   - POST {basePath}{callbackPath} - Gateway callback. Bodies carrying a
//     payload envelope are decrypted; others are mirrored unchanged.
//
// # Subscribers
//
//   - GET /events - Server-Sent Events stream of callback documents
//   - GET /ws     - WebSocket stream of {event, data, time} frames
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe
//   - GET /metrics - Prometheus metrics (if enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shiva-rakshith/hcx-platform/internal/config"
	"github.com/shiva-rakshith/hcx-platform/internal/exchange"
	"github.com/shiva-rakshith/hcx-platform/internal/metrics"
	"github.com/shiva-rakshith/hcx-platform/pkg/broadcast"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/transport"
)

// maxSubmitBodySize bounds caller submissions (1 MB)
const maxSubmitBodySize = 1 << 20

// Submitter runs the submission flow
type Submitter interface {
	Submit(ctx context.Context, req exchange.SubmitRequest) (*exchange.SubmissionResult, error)
}

// CallbackProcessor handles gateway callbacks
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, body []byte) (*exchange.CallbackMessage, error)
}

// Dependencies are the components the server routes requests to
type Dependencies struct {
	Submitter Submitter
	Callbacks CallbackProcessor
	Hub       *broadcast.Hub
	Metrics   *metrics.Metrics
	// ReadyCheck reports whether backing services are reachable
	ReadyCheck func(ctx context.Context) error
}

// Server is the HCX node HTTP server
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	httpSrv   *http.Server
	submitter Submitter
	callbacks CallbackProcessor
	hub       *broadcast.Hub
	metrics   *metrics.Metrics
	limiter   *clientLimiter
	ready     func(ctx context.Context) error

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new HCX node server
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if deps.Submitter == nil || deps.Callbacks == nil || deps.Hub == nil {
		return nil, errors.New("server: submitter, callbacks and hub are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		submitter: deps.Submitter,
		callbacks: deps.Callbacks,
		hub:       deps.Hub,
		metrics:   deps.Metrics,
		ready:     deps.ReadyCheck,
		closing:   make(chan struct{}),
	}

	if rl := cfg.Server.RateLimit; rl.Enabled {
		s.limiter = newClientLimiter(rl.RequestsPerSecond, rl.Burst, 10*time.Minute)
		logger.Info("callback rate limit enabled", "rps", rl.RequestsPerSecond, "burst", rl.Burst)
	}

	router := chi.NewRouter()
	s.registerRoutes(router)

	// No write timeout: /events and /ws are long-lived streams
	s.httpSrv = &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		s.httpSrv.TLSConfig = transport.DefaultHTTPSConfig().ServerTLSConfig()
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown ends subscriber streams and gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	// Health check
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	if m := s.config.Metrics.Metrics; m.Enabled && s.metrics != nil {
		r.Method(http.MethodGet, m.Path, s.metrics.Handler())
	}

	// Subscribers
	r.Get("/events", s.handleEvents)
	r.Get("/ws", s.handleWebSocket)

	// Exchange
	prefix := strings.TrimSuffix(s.config.Server.BasePath, "/")
	r.Post(prefix+protocol.OpPreauthSubmit.Path(""), s.handleSubmit)
	r.With(s.rateLimit).Post(prefix+s.config.CallbackPath(), s.handleCallback)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			s.jsonError(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	published, dropped := s.hub.Stats()
	s.jsonResponse(w, map[string]any{
		"status":           "ready",
		"subscribers":      s.hub.Subscribers(),
		"events_published": published,
		"events_dropped":   dropped,
	}, http.StatusOK)
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}

// writeError maps exchange errors onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *protocol.ValidationError
	var derr *transport.DownstreamError
	switch {
	case errors.As(err, &verr):
		s.jsonError(w, verr.Message, http.StatusBadRequest)
	case errors.As(err, &derr):
		s.jsonError(w, derr.Error(), transport.StatusCode(err))
	default:
		s.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
