// Package server exposes the diagram pipeline and the process store over HTTP.
//
// # Routes
//
//	POST   /api/v1/diagrams                BPMN XML (or a JSON envelope with Accept: application/json)
//	POST   /api/v1/diagrams/layout         layout and routed paths as JSON
//	POST   /api/v1/diagrams/preview        Graphviz preview (?format=svg|png|dot)
//	POST   /api/v1/steps/validate          strict validation report
//	GET    /api/v1/processes               stored table summaries
//	POST   /api/v1/processes               store a new table
//	GET    /api/v1/processes/{id}          stored table
//	PUT    /api/v1/processes/{id}          replace a stored table
//	DELETE /api/v1/processes/{id}          delete a stored table
//	GET    /api/v1/processes/{id}/diagram  BPMN XML of a stored table
//	GET    /healthz                        liveness
//	GET    /metrics                        Prometheus metrics
//
// Request bodies are step tables in JSON: an array of steps or an object
// with "title" and "steps". Legacy column names are accepted. Errors are
// returned as {"code": ..., "message": ...} with a status derived from the
// error code.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tnpagents/processmate/pkg/config"
	"github.com/tnpagents/processmate/pkg/observability"
	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/store"
)

// Options configures a Server.
type Options struct {
	Runner  *pipeline.Runner
	Store   store.Store
	Logger  *log.Logger
	Config  config.ServerConfig
	Metrics *Metrics // nil creates a new one

	// Defaults are the generation options requests start from.
	Defaults pipeline.Options
}

// Server is the HTTP API.
type Server struct {
	runner   *pipeline.Runner
	store    store.Store
	logger   *log.Logger
	cfg      config.ServerConfig
	metrics  *Metrics
	defaults pipeline.Options
	router   chi.Router
}

// New builds the router. The runner and the store are required.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Config == (config.ServerConfig{}) {
		opts.Config = config.Default().Server
	}
	s := &Server{
		runner:   opts.Runner,
		store:    opts.Store,
		logger:   opts.Logger,
		cfg:      opts.Config,
		metrics:  opts.Metrics,
		defaults: opts.Defaults,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limitBody)

		r.Post("/diagrams", s.handleDiagram)
		r.Post("/diagrams/layout", s.handleLayout)
		r.Post("/diagrams/preview", s.handlePreview)
		r.Post("/steps/validate", s.handleValidate)

		r.Route("/processes", func(r chi.Router) {
			r.Get("/", s.handleListProcesses)
			r.Post("/", s.handleCreateProcess)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProcess)
				r.Put("/", s.handlePutProcess)
				r.Delete("/", s.handleDeleteProcess)
				r.Get("/diagram", s.handleProcessDiagram)
			})
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Middleware
// =============================================================================

// logRequests logs each request at debug level (warn for 5xx) and reports
// it to the API hooks under its route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		hooks := observability.API()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))

		logf := s.logger.Debug
		if status >= 500 {
			logf = s.logger.Warn
		}
		logf("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
