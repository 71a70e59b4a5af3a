package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// TraceHeader carries the request correlation ID in both directions
const TraceHeader = "X-Trace-ID"

type traceKey struct{}

// traceMiddleware echoes the caller's trace ID or generates one
func traceMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(TraceHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(traceKey{}, id)
		c.Set(TraceHeader, id)
		return c.Next()
	}
}

// TraceID returns the request's trace ID, or "" outside traceMiddleware
func TraceID(c fiber.Ctx) string {
	id, _ := c.Locals(traceKey{}).(string)
	return id
}

// requestLogger logs one line per request after the handler has run
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// fiber reuses the context, capture before Next
		method := c.Method()
		path := c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _, _ = classify(err)
		}
		logger.Info("http request",
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"trace_id", TraceID(c))
		return err
	}
}
