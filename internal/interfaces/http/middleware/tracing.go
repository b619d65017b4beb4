package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracingSkipPaths are probe endpoints that would only add noise to traces
var tracingSkipPaths = []string{"/health", "/ready", "/metrics"}

// Tracing wraps otelgin. otelgin names spans after the route pattern and
// marks 5xx responses as errors.
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(serviceName)
	return func(c *gin.Context) {
		if slices.Contains(tracingSkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		// otelgin calls c.Next itself
		base(c)
	}
}

// TracingAttributeInjector tags the current span with the request and actor
// IDs. It runs after Tracing and the authentication middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := c.GetString(RequestIDKey); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if actor := c.GetString(ActorIDKey); actor != "" {
				span.SetAttributes(attribute.String("actor_id", actor))
			}
		}
		c.Next()
	}
}
