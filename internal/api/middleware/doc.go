// Package middleware provides the gin middleware stack of the API:
//
//   - CORS: browser access from any origin, WebSocket upgrades included
//   - RateLimit: per-IP token buckets, idle clients forgotten
//   - AccessLog: one zap entry per request carrying the trace id
//   - Recovery: panics become 500 responses
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(cfg.RateLimit))
package middleware
