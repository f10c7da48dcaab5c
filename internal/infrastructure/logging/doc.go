// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Playground runs are logged at debug level with the playground id, the run
// generation and the resulting state; faults raised by user code are not
// service errors and never log above info.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Error("Failed to load catalog", zap.Error(err))
package logging
