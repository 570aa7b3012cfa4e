package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lumi-ai/lumi/pkg/dashboard"
	"github.com/lumi-ai/lumi/pkg/httputil"
	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// PluginService is the part of the plugin manager the API drives.
type PluginService interface {
	PluginInfo() []plugins.Info
	EnablePlugin(ctx context.Context, name string) error
	DisablePlugin(ctx context.Context, name string) error
	UpdatePluginConfig(ctx context.Context, name string, settings map[string]any) error
	SyncRegistry(ctx context.Context) error
	DispatchMessageReceived(ctx context.Context, message string, source plugins.Source) string
}

// DashboardSource serves dashboard snapshots.
type DashboardSource interface {
	Snapshot() dashboard.Snapshot
	Collect(ctx context.Context) dashboard.Snapshot
}

// Server represents the admin API server
type Server struct {
	plugins   PluginService
	dashboard DashboardSource
	health    *observability.HealthChecker
	metrics   http.Handler
	log       *logrus.Logger

	router  *mux.Router
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithDashboard serves /api/v1/dashboard from d.
func WithDashboard(d DashboardSource) Option {
	return func(s *Server) { s.dashboard = d }
}

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler serves /metrics from h.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a new API server
func NewServer(svc PluginService, opts ...Option) *Server {
	s := &Server{
		plugins: svc,
		router:  mux.NewRouter(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.log),
		httputil.RecoveryMiddleware(s.log),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Plugin routes
	s.router.HandleFunc("/api/v1/plugins", s.listPlugins).Methods("GET")
	s.router.HandleFunc("/api/v1/plugins/sync", s.syncRegistry).Methods("POST")
	s.router.HandleFunc("/api/v1/plugins/{name}", s.getPlugin).Methods("GET")
	s.router.HandleFunc("/api/v1/plugins/{name}/enable", s.enablePlugin).Methods("POST")
	s.router.HandleFunc("/api/v1/plugins/{name}/disable", s.disablePlugin).Methods("POST")
	s.router.HandleFunc("/api/v1/plugins/{name}/config", s.updateConfig).Methods("PUT")

	// Message routes
	s.router.HandleFunc("/api/v1/messages", s.dispatchMessage).Methods("POST")

	if s.dashboard != nil {
		s.router.HandleFunc("/api/v1/dashboard", s.getDashboard).Methods("GET")
	}

	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
