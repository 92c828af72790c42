package api

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/docs"
	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/parameters"
	"github.com/hdcn/ledenportaal/pkg/products"
	"github.com/hdcn/ledenportaal/pkg/session"
)

// Config wires the server's collaborators. Evaluator, Sessions and the
// three stores are required for a functional portal; the rest is
// optional and the matching routes or middleware are skipped when nil.
type Config struct {
	Evaluator  *authz.Evaluator
	Sessions   *session.Manager
	Members    members.Store
	Products   products.Store
	Parameters parameters.Store
	Exports    *exports.Runner

	AuditLogger audit.Logger
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	Health      *observability.HealthChecker
	RateLimits  *middleware.RateLimitMiddleware

	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string

	// AuditAllRequests writes an audit event for every request instead
	// of only for requests handlers explicitly record.
	AuditAllRequests bool
}

// Server is the portal HTTP API.
type Server struct {
	router    *mux.Router
	evaluator *authz.Evaluator
	logger    *observability.Logger
	cfg       Config
}

// NewServer assembles the router, middleware chain and handler groups.
func NewServer(cfg Config) *Server {
	if cfg.Evaluator == nil {
		cfg.Evaluator = authz.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	s := &Server{
		router:    mux.NewRouter(),
		evaluator: cfg.Evaluator,
		logger:    cfg.Logger,
		cfg:       cfg,
	}
	s.setupRoutes()
	return s
}

// Router returns the fully wired handler for an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Outermost first: request IDs feed the access log, recovery sits
	// inside both so panics are still logged with their request ID.
	s.router.Use(middleware.RequestIDMiddleware)
	s.router.Use(middleware.RequestLoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware)
	if len(s.cfg.CORSOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(s.cfg.CORSOrigins))
	}
	if s.cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	}
	if s.cfg.AuditLogger != nil {
		s.router.Use(audit.NewMiddleware(s.cfg.AuditLogger, s.cfg.AuditAllRequests).Handler)
	}

	if s.cfg.Health != nil {
		s.router.HandleFunc("/health/live", s.cfg.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.cfg.Health.Readiness).Methods("GET")
	}
	if s.cfg.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.cfg.Registry)).Methods("GET")
	}
	docs.NewHandlers().RegisterRoutes(s.router)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.cfg.Sessions != nil {
		api.Use(middleware.NewSessionMiddleware(s.cfg.Sessions, false).Handler)
	}
	if s.cfg.RateLimits != nil {
		api.Use(s.cfg.RateLimits.Handler)
	}

	NewAuthzHandlers(s.evaluator, s.cfg.Parameters, s.cfg.Metrics).RegisterRoutes(api)
	if s.cfg.Members != nil {
		NewMemberHandlers(s.cfg.Members, s.evaluator).RegisterRoutes(api)
	}
	if s.cfg.Products != nil {
		NewProductHandlers(s.cfg.Products, s.evaluator).RegisterRoutes(api)
	}
	if s.cfg.Parameters != nil {
		NewParameterHandlers(s.cfg.Parameters, s.evaluator).RegisterRoutes(api)
	}
	if s.cfg.Exports != nil {
		NewExportHandlers(s.cfg.Exports, s.evaluator, s.cfg.RateLimits).RegisterRoutes(api)
	}
}
