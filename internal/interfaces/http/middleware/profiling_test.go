package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_SetsLabels(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(true))

	labels := map[string]string{}
	router.POST("/api/v1/ledger/invoices/:id/payments", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			labels[key] = value
			return true
		})
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ledger/invoices/1/payments", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, http.MethodPost, labels[ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/ledger/invoices/:id/payments", labels[ProfilingLabelRoute])
	assert.Equal(t, "ledger", labels[ProfilingLabelController])
}

func TestProfiling_SkipsNonAPIRoutes(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(true))

	labelled := false
	router.GET("/health", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(string, string) bool {
			labelled = true
			return false
		})
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, labelled)
}

func TestProfiling_Disabled(t *testing.T) {
	router := newTestRouter(Profiling(false))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestControllerFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/ledger/invoices/:id": "ledger",
		"/api/v2/budgets":             "budgets",
		"/api/v1/:id":                 "",
		"/api/version":                "version",
		"":                            "",
	}
	for route, want := range tests {
		assert.Equal(t, want, controllerFromRoute(route), route)
	}
}
