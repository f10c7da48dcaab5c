/*
Package tracing provides lightweight request tracing.

Trace and span ids are prefixed ULIDs. They travel in the X-Trace-ID and
X-Span-ID headers and in the request context; finished spans are written
to the zap logger by a background collector.

# Usage

	tracer := tracing.New("codeprep", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(c.Request.Context(), "playground.run")
	defer span.Finish()
	span.SetTag("playground_id", id)
*/
package tracing
