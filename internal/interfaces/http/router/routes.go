package router

import (
	"github.com/casehub/backend/internal/interfaces/http/handler"
	"github.com/casehub/backend/internal/interfaces/http/middleware"
)

// AdminRole guards operational endpoints such as the outbox dead letters
const AdminRole = "admin"

// LedgerRoutes mounts invoices and budgets under /ledger
func LedgerRoutes(invoices *handler.InvoiceHandler, budgets *handler.BudgetHandler) *DomainGroup {
	ledger := NewDomainGroup("ledger", "/ledger")

	inv := ledger.Group("invoices", "/invoices")
	inv.POST("", invoices.Create)
	inv.GET("", invoices.List)
	inv.POST("/export", invoices.ExportList)
	inv.GET("/number/:number", invoices.GetByNumber)
	inv.GET("/:id", invoices.GetByID)
	inv.PUT("/:id", invoices.Update)
	inv.POST("/:id/submit", invoices.Submit)
	inv.POST("/:id/approve", invoices.Approve)
	inv.POST("/:id/reject", invoices.Reject)
	inv.POST("/:id/cancel", invoices.Cancel)
	inv.POST("/:id/payments", invoices.RecordPayment)
	inv.GET("/:id/payments", invoices.ListPayments)
	inv.GET("/:id/balance", invoices.GetBalance)
	inv.GET("/:id/status", invoices.GetStatus)
	inv.GET("/:id/export", invoices.Export)

	bud := ledger.Group("budgets", "/budgets")
	bud.POST("", budgets.Create)
	bud.GET("/:id", budgets.GetByID)
	bud.PUT("/:id", budgets.Update)
	bud.POST("/:id/close", budgets.Close)
	bud.DELETE("/:id", budgets.Delete)

	return ledger
}

// CaseRoutes mounts /cases
func CaseRoutes(cases *handler.CaseHandler) *DomainGroup {
	g := NewDomainGroup("cases", "/cases")
	g.POST("", cases.Create)
	g.GET("", cases.List)
	g.GET("/:id", cases.GetByID)
	g.PUT("/:id", cases.Update)
	return g
}

// ProgramRoutes mounts /programs
func ProgramRoutes(programs *handler.ProgramHandler) *DomainGroup {
	g := NewDomainGroup("programs", "/programs")
	g.POST("", programs.Create)
	g.GET("/:id", programs.GetByID)
	g.PUT("/:id", programs.Update)
	g.POST("/:id/expenditures", programs.RecordExpenditure)
	return g
}

// SystemRoutes mounts /system. A nil outbox handler leaves out the outbox
// endpoints, which only exist with outbox delivery.
func SystemRoutes(system *handler.SystemHandler, outbox *handler.OutboxHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", system.GetSystemInfo)
	g.GET("/ping", system.Ping)

	if outbox != nil {
		ob := g.Group("outbox", "/outbox").Use(middleware.RequireRole(AdminRole))
		ob.GET("/stats", outbox.GetStats)
		ob.GET("/dead", outbox.GetDeadLetterEntries)
		ob.POST("/dead/retry-all", outbox.RetryAllDeadEntries)
		ob.GET("/:id", outbox.GetEntry)
		ob.POST("/:id/retry", outbox.RetryDeadEntry)
	}
	return g
}
