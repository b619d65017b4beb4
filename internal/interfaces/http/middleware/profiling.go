package middleware

import (
	"context"
	"strings"

	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Pyroscope label keys set per request
const (
	ProfilingLabelMethod     = "method"
	ProfilingLabelRoute      = "route"
	ProfilingLabelController = "controller"
)

// Profiling runs each matched API request under pprof labels so continuous
// profiles can be filtered by route. Unmatched paths and paths outside
// /api are not labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if !strings.HasPrefix(route, "/api/") {
			c.Next()
			return
		}
		labels := map[string]string{
			ProfilingLabelMethod: c.Request.Method,
			ProfilingLabelRoute:  route,
		}
		if controller := controllerFromRoute(route); controller != "" {
			labels[ProfilingLabelController] = controller
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerFromRoute returns the first resource segment after /api/vN,
// e.g. "/api/v1/ledger/invoices/:id" gives "ledger"
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
