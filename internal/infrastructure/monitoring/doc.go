/*
Package monitoring collects Prometheus metrics for the playground server.

Every Metrics value owns its registry, so tests and multiple servers in one
process never collide on registration.

# Series

  - codeprep_http_requests_total, _request_duration_seconds, _response_size_bytes
  - codeprep_playgrounds_active
  - codeprep_playground_runs_total{outcome}, codeprep_playground_run_duration_seconds
  - codeprep_playground_output_records_total{kind}
  - codeprep_tutor_calls_total{outcome}, codeprep_tutor_call_duration_seconds
  - codeprep_websocket_connections_active, codeprep_websocket_messages_total

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	manager := playground.NewManager(max, logger, metrics)
	tutor := tutor.New(cfg.Tutor, logger, tutor.WithMetrics(metrics))
*/
package monitoring
