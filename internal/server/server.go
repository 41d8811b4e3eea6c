// Package server exposes the explorer over HTTP with a chi router. Pipeline
// failures are answered with a 4xx warning body and never stop the process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/paveg/ocpanel"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/version"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server serves one Explorer
type Server struct {
	explorer *ocpanel.Explorer
	logger   *slog.Logger
	router   chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds the router for explorer
func New(explorer *ocpanel.Explorer, opts ...Option) *Server {
	s := &Server{
		explorer: explorer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "server"))
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.SetHeader("Server", version.UserAgent()))
	r.Use(StructuredLogger(s.logger))
	r.Use(Recoverer(s.logger))

	r.Get("/health", s.handleHealth)
	if s.explorer.Config().MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", s.explorer.Metrics().Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/schema", s.handleSchema)
		r.Get("/stats", s.handleStats)
		r.Post("/filter", s.handleFilter)
		r.Post("/aggregate", s.handleAggregate)
		r.Post("/rank", s.handleRank)
		r.Post("/export", s.handleExport)
		r.Post("/reload", s.handleReload)

		r.Route("/views/{name}", func(r chi.Router) {
			r.Post("/", s.handleView)
			r.Post("/export", s.handleViewExport)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// respondError maps a pipeline error to its status code. Every classified
// failure is a 4xx warning; only unclassified errors are 500s.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := GetReqID(r.Context())

	var pe *ocerrors.PipelineError
	if !errors.As(err, &pe) || pe.Kind == ocerrors.KindInternal {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "internal error", RequestID: reqID})
		return
	}

	status := http.StatusBadRequest
	switch pe.Kind {
	case ocerrors.KindSourceNotFound:
		status = http.StatusNotFound
	case ocerrors.KindMissingColumn, ocerrors.KindSerialization:
		status = http.StatusUnprocessableEntity
	}

	s.logger.WarnContext(r.Context(), "request rejected",
		slog.String("request_id", reqID),
		slog.String("kind", pe.Kind.String()),
		slog.String("error", err.Error()))
	render.Status(r, status)
	render.JSON(w, r, WarningResponse{Warning: err.Error(), Kind: pe.Kind.String(), RequestID: reqID})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.respondError(w, r, decodeError(err))
		return false
	}
	return true
}
