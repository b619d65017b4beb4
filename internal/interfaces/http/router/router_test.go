package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casehub/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Header("X-API", "1")
		c.Next()
	})
	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-API"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, w.Header().Get("X-API"), "router middleware must not wrap engine routes")
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("ledger", "/ledger")
		assert.Equal(t, "ledger", g.Name())
		assert.Equal(t, "/ledger", g.Prefix())
	})

	t.Run("subgroups and middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("ledger", "/ledger")
		sub := g.Group("invoices", "/invoices").Use(func(c *gin.Context) {
			c.Header("X-Sub", "yes")
			c.Next()
		})
		sub.DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/ledger/invoices/9", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "yes", w.Header().Get("X-Sub"))
	})

	t.Run("routes listing", func(t *testing.T) {
		g := NewDomainGroup("cases", "/cases")
		g.POST("", func(*gin.Context) {})
		g.PUT("/:id", func(*gin.Context) {})
		assert.Equal(t, []RouteInfo{
			{Method: http.MethodPost, Path: "/cases"},
			{Method: http.MethodPut, Path: "/cases/:id"},
		}, g.Routes())
	})
}

func routeSet(g *DomainGroup) map[string]bool {
	set := map[string]bool{}
	for _, r := range g.Routes() {
		set[r.Method+" "+r.Path] = true
	}
	return set
}

func TestLedgerRoutes(t *testing.T) {
	g := LedgerRoutes(handler.NewInvoiceHandler(nil, nil), handler.NewBudgetHandler(nil))
	routes := routeSet(g)

	for _, want := range []string{
		"POST /ledger/invoices",
		"GET /ledger/invoices",
		"GET /ledger/invoices/:id",
		"PUT /ledger/invoices/:id",
		"POST /ledger/invoices/:id/submit",
		"POST /ledger/invoices/:id/approve",
		"POST /ledger/invoices/:id/reject",
		"POST /ledger/invoices/:id/cancel",
		"POST /ledger/invoices/:id/payments",
		"GET /ledger/invoices/:id/payments",
		"GET /ledger/invoices/:id/balance",
		"GET /ledger/invoices/:id/status",
		"GET /ledger/invoices/:id/export",
		"POST /ledger/invoices/export",
		"POST /ledger/budgets/:id/close",
		"DELETE /ledger/budgets/:id",
	} {
		assert.True(t, routes[want], want)
	}

	// static and parameter segments must coexist in gin's tree
	require.NotPanics(t, func() {
		g.RegisterRoutes(gin.New().Group("/api/v1"))
	})
}

func TestSystemRoutes_OutboxOptional(t *testing.T) {
	system := handler.NewSystemHandler("casehub", "test", nil)

	without := routeSet(SystemRoutes(system, nil))
	assert.True(t, without["GET /system/info"])
	assert.False(t, without["GET /system/outbox/stats"])

	with := routeSet(SystemRoutes(system, handler.NewOutboxHandler(nil)))
	assert.True(t, with["GET /system/outbox/stats"])
	assert.True(t, with["POST /system/outbox/:id/retry"])
}
