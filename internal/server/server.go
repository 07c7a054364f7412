// Package server exposes the filter pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-list-filter/internal/common/auth"
	"ai-list-filter/internal/common/config"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/metrics"
	"ai-list-filter/internal/datastore"
	"ai-list-filter/internal/models"
	createfilter "ai-list-filter/internal/workers/ai-filter/create-filter"
	summarizeprompt "ai-list-filter/internal/workers/ai-filter/summarize-prompt"
)

type Pipeline interface {
	Execute(ctx context.Context, input *createfilter.Input) (*models.Result, error)
	ExecuteWithSelections(ctx context.Context, input *createfilter.SelectionsInput) (*models.Result, error)
}

type Summarizer interface {
	Execute(ctx context.Context, input *summarizeprompt.Input) (*summarizeprompt.Output, error)
}

type ModuleService interface {
	List(ctx context.Context) ([]datastore.Module, error)
	Update(ctx context.Context, updates []datastore.Module) ([]datastore.Module, error)
	Enabled(ctx context.Context, id string) (bool, error)
}

// Validator checks a request body against the input schema of a task type.
type Validator interface {
	Validate(taskType string, document []byte) error
}

// Dependencies are the services behind the routes. Tokens may be nil, which
// turns authentication off. Ready holds the readiness probes by name.
type Dependencies struct {
	Pipeline      Pipeline
	Summarizer    Summarizer
	Modules       ModuleService
	Validator     Validator
	Tokens        auth.TokenValidator
	RequiredScope string
	Ready         map[string]func(ctx context.Context) error
}

type Server struct {
	deps   Dependencies
	config config.ServerConfig
	logger logger.Logger
	server *http.Server
}

func NewServer(cfg config.ServerConfig, deps Dependencies, log logger.Logger) *Server {
	return &Server{
		deps:   deps,
		config: cfg,
		logger: log.With(map[string]interface{}{
			"component": "http",
		}),
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(config.GetDuration(s.config.RequestTimeout)))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.requireModule(config.ModuleListFilter)).Post("/filters", s.handleCreateFilter(false))
		r.With(s.requireModule(config.ModuleListFilter)).Post("/filters/selections", s.handleSelections(false))
		r.With(s.requireModule(config.ModuleDynamicMaps)).Post("/maps/filters", s.handleCreateFilter(true))
		r.With(s.requireModule(config.ModuleDynamicMaps)).Post("/maps/filters/selections", s.handleSelections(true))
		r.Post("/summarize", s.handleSummarize)
		r.Get("/modules", s.handleListModules)
		r.Put("/modules", s.handleUpdateModules)
	})
	return r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// instrument counts and logs every request by route pattern. Bodies are
// never logged.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		s.logger.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
