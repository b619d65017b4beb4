package handler

import (
	"net/http"
	"strconv"

	ledgerapp "github.com/casehub/backend/internal/application/ledger"
	"github.com/casehub/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler serves /ledger/invoices
type InvoiceHandler struct {
	BaseHandler
	invoices *ledgerapp.InvoiceService
	exports  *ledgerapp.ExportService
}

// NewInvoiceHandler creates an InvoiceHandler. exports may be nil, which
// disables the export endpoints.
func NewInvoiceHandler(invoices *ledgerapp.InvoiceService, exports *ledgerapp.ExportService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, exports: exports}
}

// Create godoc
// @ID           createInvoice
// @Summary      Create an invoice
// @Description  Create a draft invoice; totals are computed from the line items
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body ledgerapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req ledgerapp.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  Paginated invoice list. status filters by effective status, so OVERDUE matches unpaid invoices past due
// @Tags         invoices
// @Produce      json
// @Param        client_id query string false "Client ID" format(uuid)
// @Param        project_id query string false "Project ID" format(uuid)
// @Param        status query string false "Effective status" Enums(DRAFT, PENDING, APPROVED, PARTIALLY_PAID, PAID, OVERDUE, CANCELLED, REJECTED)
// @Param        issue_date_from query string false "Issued on or after" format(date)
// @Param        issue_date_to query string false "Issued on or before" format(date)
// @Param        min_total query number false "Minimum total"
// @Param        max_total query number false "Maximum total"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter ledgerapp.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = page(filter.Page, filter.PageSize)

	invoices, total, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @ID           getInvoiceById
// @Summary      Get an invoice by ID
// @Description  Retrieve one invoice with its line items and effective status
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// GetByNumber godoc
// @ID           getInvoiceByNumber
// @Summary      Get an invoice by number
// @Description  Look an invoice up by its INV- number
// @Tags         invoices
// @Produce      json
// @Param        number path string true "Invoice number"
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/number/{number} [get]
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	inv, err := h.invoices.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Update godoc
// @ID           updateInvoice
// @Summary      Update an invoice
// @Description  Edit a Draft or Pending invoice. Items, when given, replace every line
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ledgerapp.UpdateInvoiceRequest true "Changes"
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req ledgerapp.UpdateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Submit godoc
// @ID           submitInvoice
// @Summary      Submit an invoice
// @Description  Move a Draft invoice to Pending
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/submit [post]
func (h *InvoiceHandler) Submit(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	inv, err := h.invoices.Submit(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Approve godoc
// @ID           approveInvoice
// @Summary      Approve an invoice
// @Description  Approve a Draft or Pending invoice so it can receive payments
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/approve [post]
func (h *InvoiceHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	inv, err := h.invoices.Approve(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Reject godoc
// @ID           rejectInvoice
// @Summary      Reject an invoice
// @Description  Reject a Pending invoice with a reason
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ledgerapp.RejectInvoiceRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/reject [post]
func (h *InvoiceHandler) Reject(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req ledgerapp.RejectInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Reject(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Cancel godoc
// @ID           cancelInvoice
// @Summary      Cancel an invoice
// @Description  Cancel an invoice that has no payments
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ledgerapp.CancelInvoiceRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req ledgerapp.CancelInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Cancel(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// RecordPayment godoc
// @ID           recordInvoicePayment
// @Summary      Record a payment
// @Description  Record a payment against an Approved, Partially Paid or Overdue invoice. Amounts must be whole minor units
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ledgerapp.RecordPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[ledgerapp.RecordPaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req ledgerapp.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.invoices.RecordPayment(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListPayments godoc
// @ID           listInvoicePayments
// @Summary      List payments
// @Description  Every payment of an invoice in recording order
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]ledgerapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	payments, err := h.invoices.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// GetBalance godoc
// @ID           getInvoiceBalance
// @Summary      Get invoice balance
// @Description  Total, paid, balance due and overpayment of an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.BalanceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/balance [get]
func (h *InvoiceHandler) GetBalance(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	balance, err := h.invoices.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// GetStatus godoc
// @ID           getInvoiceStatus
// @Summary      Get invoice status
// @Description  Stored and effective status of an invoice as of now
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.StatusResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/status [get]
func (h *InvoiceHandler) GetStatus(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	status, err := h.invoices.GetStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Export godoc
// @ID           exportInvoice
// @Summary      Export an invoice
// @Description  Download one invoice with its payments as CSV or PDF
// @Tags         invoices
// @Produce      text/csv,application/pdf
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        format query string false "Output format" Enums(csv, pdf) default(csv)
// @Success      200 {file} binary
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Failure      501 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/{id}/export [get]
func (h *InvoiceHandler) Export(c *gin.Context) {
	if h.exports == nil {
		h.Error(c, http.StatusNotImplemented, dto.ErrCodeNotImplemented, "Export is not enabled")
		return
	}
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	doc, err := h.exports.ExportInvoice(c.Request.Context(), id, c.DefaultQuery("format", ledgerapp.FormatCSV))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// ExportList godoc
// @ID           exportInvoices
// @Summary      Export invoices
// @Description  Upload a CSV of the invoices matching the filter and return a presigned download link
// @Tags         invoices
// @Produce      json
// @Param        client_id query string false "Client ID" format(uuid)
// @Param        status query string false "Effective status"
// @Param        issue_date_from query string false "Issued on or after" format(date)
// @Param        issue_date_to query string false "Issued on or before" format(date)
// @Success      201 {object} APIResponse[ledgerapp.ExportLinkResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Failure      501 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/invoices/export [post]
func (h *InvoiceHandler) ExportList(c *gin.Context) {
	if h.exports == nil {
		h.Error(c, http.StatusNotImplemented, dto.ErrCodeNotImplemented, "Export is not enabled")
		return
	}
	var filter ledgerapp.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	link, err := h.exports.ExportList(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, link)
}
