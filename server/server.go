// Package server exposes a StudyMesh over HTTP.
//
// Routes:
//
//	POST /v1/run     {"agent","user_id","message"} -> {"agent","user_id","output"}
//	GET  /v1/agents  registered agents
//	GET  /v1/stats   bridge counters and the metrics summary
//	GET  /metrics    Prometheus exposition (when metrics are enabled)
//	GET  /healthz    liveness
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
	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/studymesh"
	"github.com/hupe1980/studymesh/bridge"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/observability"
)

// maxRequestBytes bounds the /v1/run request body.
const maxRequestBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Addr            string
	Logger          logging.Logger
	ShutdownTimeout time.Duration
}

// Server serves one StudyMesh.
type Server struct {
	mesh    *studymesh.StudyMesh
	opts    Options
	handler http.Handler
}

// New creates a Server for mesh. Addr defaults to ":8080".
func New(mesh *studymesh.StudyMesh, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8080",
		Logger:          mesh.Logger(),
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{mesh: mesh, opts: opts}
	s.handler = s.routes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.start", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.opts.Logger.Info("server.shutdown", "addr", s.opts.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Get("/agents", s.handleAgents)
		r.Get("/stats", s.handleStats)
	})

	if m := s.mesh.Metrics(); m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

// RunRequest is the body of POST /v1/run.
type RunRequest struct {
	Agent   string `json:"agent"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// RunResponse is the body of a successful POST /v1/run.
type RunResponse struct {
	Agent  string `json:"agent"`
	UserID string `json:"user_id"`
	Output string `json:"output"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Agent == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, errors.New("agent and user_id are required"))
		return
	}

	out, err := s.mesh.RunSync(r.Context(), req.Agent, req.UserID, req.Message)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.opts.Logger.Error("server.run.failed", "agent", req.Agent, "user", req.UserID, "error", err)
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Agent: req.Agent, UserID: req.UserID, Output: out})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.mesh.Agents()})
}

type statsResponse struct {
	Bridge  bridge.Stats                 `json:"bridge"`
	Metrics []observability.SummaryEntry `json:"metrics,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Bridge: s.mesh.Bridge().Stats()}
	if m := s.mesh.Metrics(); m != nil {
		summary, err := m.Summary()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Metrics = summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, studymesh.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrReentrancyViolation):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// observe wraps every request in a span and logs it.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := observability.StartSpan(r.Context(), "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		var err error
		if ww.Status() >= http.StatusInternalServerError {
			err = fmt.Errorf("status %d", ww.Status())
		}
		observability.EndSpan(span, err)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		s.opts.Logger.Debug("server.request", "method", r.Method, "route", pattern,
			"status", ww.Status(), "duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
