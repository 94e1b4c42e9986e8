package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dealsourcer/orgsearch/pkg/auth"
	"github.com/dealsourcer/orgsearch/pkg/httputil"
	"github.com/dealsourcer/orgsearch/pkg/middleware"
	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
	"github.com/dealsourcer/orgsearch/pkg/search"
)

// APIName and APIVersion identify the service in the root endpoint.
const (
	APIName    = "orgsearch"
	APIVersion = "1.0.0"
)

// Dependencies carries everything the server needs to assemble routes.
type Dependencies struct {
	SearchService *search.Service
	OrgStore      *orgs.Store
	AuthService   *auth.Service

	Logger     *observability.Logger
	AuthLogger *logrus.Logger
	Metrics    *observability.Metrics

	// RateLimiter is optional; when nil requests are not rate limited.
	RateLimiter func(http.Handler) http.Handler
	// TracingEnabled wraps the router with otelhttp instrumentation.
	TracingEnabled bool
}

// Server is the public HTTP API.
type Server struct {
	router  *mux.Router
	handler http.Handler
	deps    Dependencies
}

// NewServer assembles the API router with its middleware chain.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}

	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware,
		middleware.CORS(nil),
	}
	// Resolve bearer tokens before rate limiting so authenticated requests
	// are keyed per user rather than sharing the anonymous per-IP budget.
	if deps.AuthService != nil {
		chain = append(chain, auth.ResolveUser(deps.AuthService))
	}
	if deps.RateLimiter != nil {
		chain = append(chain, deps.RateLimiter)
	}
	if deps.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	s.handler = httputil.Chain(chain...)(s.router)
	if deps.TracingEnabled {
		s.handler = otelhttp.NewHandler(s.handler, "orgsearch-api")
	}

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.apiInfo).Methods("GET")

	// Public routes
	search.NewHandlers(s.deps.SearchService, s.deps.Logger).RegisterRoutes(s.router)
	auth.NewHandlers(s.deps.AuthService, s.deps.AuthLogger).RegisterRoutes(s.router)

	// Token-protected routes
	protected := s.router.NewRoute().Subrouter()
	protected.Use(auth.Middleware(s.deps.AuthService))
	orgs.NewHandlers(s.deps.OrgStore, s.deps.Logger).RegisterRoutes(protected)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// APIInfo describes the service and its endpoints.
type APIInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// apiInfo handles GET /
func (s *Server) apiInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, APIInfo{
		Name:    APIName,
		Version: APIVersion,
		Endpoints: map[string]string{
			"GET /search":              "full-text organization search",
			"GET /organization/{id}":   "organization detail (bearer token)",
			"GET /stats":               "corpus statistics (bearer token)",
			"POST /signup":             "request a signup verification code",
			"POST /verify-code":        "exchange a code for an API token",
			"POST /request-login-code": "request a login code for an existing account",
		},
	})
}

// NewHealthServer builds the internal health/metrics mux that runs on a
// separate port. The registry may be nil to skip the metrics endpoint.
func NewHealthServer(checker *observability.HealthChecker, registry *prometheus.Registry) *http.ServeMux {
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	return healthMux
}
