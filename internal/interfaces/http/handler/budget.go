package handler

import (
	budgetapp "github.com/casehub/backend/internal/application/budget"
	"github.com/gin-gonic/gin"
)

// BudgetHandler serves /ledger/budgets
type BudgetHandler struct {
	BaseHandler
	budgets *budgetapp.BudgetService
}

// NewBudgetHandler creates a BudgetHandler
func NewBudgetHandler(budgets *budgetapp.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets}
}

// Create godoc
// @ID           createBudget
// @Summary      Create a budget
// @Description  Create a budget for a project and the programs it funds
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Param        request body budgetapp.CreateBudgetRequest true "Budget"
// @Success      201 {object} APIResponse[budgetapp.BudgetResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req budgetapp.CreateBudgetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	b, err := h.budgets.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, b)
}

// GetByID godoc
// @ID           getBudgetById
// @Summary      Get a budget by ID
// @Description  Retrieve one budget
// @Tags         budgets
// @Produce      json
// @Param        id path string true "Budget ID" format(uuid)
// @Success      200 {object} APIResponse[budgetapp.BudgetResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/budgets/{id} [get]
func (h *BudgetHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "budget")
	if !ok {
		return
	}
	b, err := h.budgets.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, b)
}

// Update godoc
// @ID           updateBudget
// @Summary      Update a budget
// @Description  Change budget fields; a new total publishes budget-changed
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Param        id path string true "Budget ID" format(uuid)
// @Param        request body budgetapp.UpdateBudgetRequest true "Changes"
// @Success      200 {object} APIResponse[budgetapp.BudgetResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "budget")
	if !ok {
		return
	}
	var req budgetapp.UpdateBudgetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	b, err := h.budgets.Update(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, b)
}

// Close godoc
// @ID           closeBudget
// @Summary      Close a budget
// @Description  Close a budget; it can no longer be changed
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Param        id path string true "Budget ID" format(uuid)
// @Param        request body budgetapp.CloseBudgetRequest true "Reason"
// @Success      200 {object} APIResponse[budgetapp.BudgetResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/budgets/{id}/close [post]
func (h *BudgetHandler) Close(c *gin.Context) {
	id, ok := h.pathID(c, "budget")
	if !ok {
		return
	}
	var req budgetapp.CloseBudgetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	b, err := h.budgets.Close(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, b)
}

// Delete godoc
// @ID           deleteBudget
// @Summary      Delete a budget
// @Description  Remove a budget. The body with a reason is optional
// @Tags         budgets
// @Accept       json
// @Produce      json
// @Param        id path string true "Budget ID" format(uuid)
// @Param        request body budgetapp.DeleteBudgetRequest false "Reason"
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "budget")
	if !ok {
		return
	}
	var req budgetapp.DeleteBudgetRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	if err := h.budgets.Delete(c.Request.Context(), id, req, actor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
