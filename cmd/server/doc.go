// Package main is the entry point for the CodePrep playground server.
//
// The server hosts JavaScript/JSX playgrounds over REST and WebSocket,
// serves the question catalog, tracks learner progress and proxies
// tutoring requests to a generative model.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
