// Package server wires the playground service together.
//
// New builds every collaborator from a config.Config:
//   - catalog (embedded, or CATALOG_DIR)
//   - progress store (memory, file or redis)
//   - tutor client guarded by a circuit breaker
//   - sandbox pool bounding concurrent synchronous phases
//   - playground manager
//
// and mounts the REST routes, the WebSocket stream at
// /playgrounds/:id/stream and Prometheus metrics at /metrics behind the
// middleware stack (recovery, tracing, access log, metrics, CORS, rate
// limiting).
//
// Example Usage:
//
//	cfg, err := config.Load()
//	srv, err := server.New(cfg)
//	go srv.Run()
//	...
//	srv.Shutdown(ctx)
package server
