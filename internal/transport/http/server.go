// Package http exposes the optional status server: health, Prometheus
// metrics, the current run snapshot and a websocket stream of walk events.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pbimirror/internal/config"
	"pbimirror/internal/infrastructure"
	"pbimirror/internal/mirror"
)

const readHeaderTimeout = 5 * time.Second

// StatusProvider reports the walk currently in progress, if any
type StatusProvider interface {
	Status() (mirror.Summary, bool)
}

// Routes lists the handlers the router serves. Nil fields are skipped.
type Routes struct {
	Metrics   http.Handler
	Status    StatusProvider
	WebSocket http.HandlerFunc
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// NewRouter builds the status router
func NewRouter(routes Routes, logger *slog.Logger) chi.Router {
	logger = infrastructure.WithComponent(logger, "http")
	r := chi.NewRouter()

	r.Use(RequestID)

	// /ws skips the wrapping middleware so the connection can be hijacked
	if routes.WebSocket != nil {
		r.HandleFunc("/ws", routes.WebSocket)
	}

	r.Group(func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("pbimirror.status"))
		r.Use(StructuredLogger(logger))
		r.Use(Recoverer(logger))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, HealthResponse{Status: "ok", Version: config.AppVersion})
		})

		r.Get("/status", statusHandler(routes.Status))
	})

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderProblem(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})

	return r
}

func statusHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			renderProblem(w, r, http.StatusServiceUnavailable, "status is not available")
			return
		}
		summary, ok := provider.Status()
		if !ok {
			renderProblem(w, r, http.StatusServiceUnavailable, "no walk has started")
			return
		}
		render.JSON(w, r, summary)
	}
}

// Server wraps http.Server with context-driven shutdown
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server for handler listening on addr
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: infrastructure.WithComponent(logger, "http"),
	}
}

// Serve listens on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.InfoContext(ctx, "Status server listening", slog.String("addr", ln.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ServerShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.InfoContext(shutdownCtx, "Status server stopped")
	return nil
}

// ListenAndServe binds the configured address and calls Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
