package handler

import (
	caseapp "github.com/casehub/backend/internal/application/casework"
	"github.com/gin-gonic/gin"
)

// CaseHandler serves /cases
type CaseHandler struct {
	BaseHandler
	cases *caseapp.CaseService
}

// NewCaseHandler creates a CaseHandler
func NewCaseHandler(cases *caseapp.CaseService) *CaseHandler {
	return &CaseHandler{cases: cases}
}

// Create godoc
// @ID           createCase
// @Summary      Create a case
// @Description  Open a case for a beneficiary, optionally within a program
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        request body caseapp.CreateCaseRequest true "Case"
// @Success      201 {object} APIResponse[caseapp.CaseResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	var req caseapp.CreateCaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cs, err := h.cases.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, cs)
}

// List godoc
// @ID           listCases
// @Summary      List cases
// @Description  Paginated case list
// @Tags         cases
// @Produce      json
// @Param        program_id query string false "Program ID" format(uuid)
// @Param        beneficiary_id query string false "Beneficiary ID" format(uuid)
// @Param        status query string false "Case status" Enums(OPEN, IN_PROGRESS, ON_HOLD, CLOSED)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]caseapp.CaseResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	var filter caseapp.CaseListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = page(filter.Page, filter.PageSize)

	cases, total, err := h.cases.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, cases, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @ID           getCaseById
// @Summary      Get a case by ID
// @Description  Retrieve one case
// @Tags         cases
// @Produce      json
// @Param        id path string true "Case ID" format(uuid)
// @Success      200 {object} APIResponse[caseapp.CaseResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id} [get]
func (h *CaseHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	cs, err := h.cases.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cs)
}

// Update godoc
// @ID           updateCase
// @Summary      Update a case
// @Description  Edit case fields, program, assignee or status
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id path string true "Case ID" format(uuid)
// @Param        request body caseapp.UpdateCaseRequest true "Changes"
// @Success      200 {object} APIResponse[caseapp.CaseResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id} [put]
func (h *CaseHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req caseapp.UpdateCaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cs, err := h.cases.Update(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cs)
}
