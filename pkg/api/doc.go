// Package api assembles the public HTTP server: routes, middleware
// chain, and the internal health/metrics mux.
//
// Public routes are GET /search and the signup flow (POST /signup,
// POST /verify-code, POST /request-login-code). GET /organization/{id}
// and GET /stats sit behind bearer-token authentication. GET / reports
// the API surface.
//
// The middleware chain, outermost first: panic recovery, request ID,
// request logging, CORS, optional rate limiting, Prometheus metrics.
// When tracing is enabled the whole router is wrapped in otelhttp.
package api
