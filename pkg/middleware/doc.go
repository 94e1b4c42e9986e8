// Package middleware provides HTTP middleware shared by the API server:
// rate limiting (in-memory and Redis-backed for multi-instance
// deployments) and CORS handling.
//
// Rate limits are keyed by authenticated user email when present,
// falling back to client IP for anonymous requests. Authenticated users
// get a higher quota.
package middleware
