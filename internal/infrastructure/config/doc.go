// Package config provides 12-factor configuration management for the
// playground server.
//
// Configuration is loaded from environment variables with sensible
// defaults and validated before use. CLI flags can override the loaded
// values.
//
// Configuration Sections:
//   - Server: HTTP listen address
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting
//   - Sandbox: execution budgets and concurrency
//   - Playground: registry capacity
//   - Catalog: optional on-disk question catalog
//   - Progress: learner progress backend (memory, file, redis)
//   - Tutor: generative-model endpoint and credentials
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SANDBOX_TIMEOUT, SANDBOX_ASYNC_TIMEOUT, SANDBOX_MAX_CALL_STACK,
//     SANDBOX_MAX_OUTPUT, SANDBOX_MAX_CONCURRENT
//   - PLAYGROUND_MAX_INSTANCES, CATALOG_DIR
//   - PROGRESS_BACKEND, PROGRESS_PATH, PROGRESS_REDIS_ADDR, PROGRESS_REDIS_DB
//   - TUTOR_ENDPOINT, TUTOR_API_KEY, TUTOR_MODEL, TUTOR_TIMEOUT, TUTOR_RPS
package config
