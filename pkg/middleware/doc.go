// Package middleware provides the HTTP middleware for session handling,
// permission guards, rate limiting and request logging.
//
// # Overview
//
// This package sits between the router and the handlers. The session
// middleware resolves the bearer token to a portal user, the guards ask
// the access evaluator before a handler runs, and the rate limiters
// protect the API from both chatty clients and expensive export runs.
//
// # Middleware Components
//
// SessionMiddleware: bearer token to portal user
//
//	sessions := middleware.NewSessionMiddleware(manager, false)
//	router.Use(sessions.Handler)
//	// Resolves the token, puts the user on the request context
//
// Permission guards: evaluator-backed access checks
//
//	read := middleware.RequirePermission(evaluator, authz.ResourceMembers, authz.ActionRead)
//	router.Handle("/api/v1/members", read(listHandler))
//
//	regional := middleware.RequireRegionPermission(evaluator, authz.ResourceMembers, authz.ActionWrite, "region")
//	// Region taken from the route variable, denial recorded on the audit trail
//
// RateLimitMiddleware: Redis-backed fixed window counters
//
//	limits := middleware.NewRateLimitMiddleware(redisClient)
//	router.Use(limits.Handler)
//	exportRoute.Handler(limits.ForExports(exportHandler))
//
// RequestIDMiddleware / RequestLoggingMiddleware: request identity and
// structured access logs.
//
// # Rate Limiting
//
// Anonymous: 100 req/min. Authenticated: 1000 req/min. Export runs:
// 10 per hour per user. Counters live in Redis so the limits hold
// across portal instances; on Redis errors the limiter fails open.
//
// # Related Packages
//
//   - pkg/session: token resolution
//   - pkg/authz: the access evaluator
//   - pkg/audit: denial events on the audit trail
//   - pkg/httputil: response helpers and the generic middleware chain
package middleware
