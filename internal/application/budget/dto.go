package budget

import (
	"time"

	"github.com/casehub/backend/internal/domain/budget"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBudgetRequest represents a request to create a budget
type CreateBudgetRequest struct {
	Code        string          `json:"code" binding:"required,min=1,max=50"`
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Currency    string          `json:"currency" binding:"omitempty,currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ProjectIDs  []uuid.UUID     `json:"project_ids"`
	ProgramIDs  []uuid.UUID     `json:"program_ids"`
}

// UpdateBudgetRequest represents a partial budget update.
// Nil fields are unchanged; non-nil id lists replace the current links.
type UpdateBudgetRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=200"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	ProjectIDs  []uuid.UUID      `json:"project_ids"`
	ProgramIDs  []uuid.UUID      `json:"program_ids"`
	Reason      string           `json:"reason" binding:"max=500"`
}

// CloseBudgetRequest represents a request to close a budget
type CloseBudgetRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// DeleteBudgetRequest represents a request to delete a budget
type DeleteBudgetRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BudgetResponse represents a budget in API responses
type BudgetResponse struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ProjectIDs  []uuid.UUID     `json:"project_ids"`
	ProgramIDs  []uuid.UUID     `json:"program_ids"`
	Status      string          `json:"status"`
	CloseReason string          `json:"close_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ToBudgetResponse converts a domain budget
func ToBudgetResponse(b *budget.Budget) BudgetResponse {
	return BudgetResponse{
		ID:          b.ID,
		Code:        b.Code,
		Name:        b.Name,
		Currency:    b.TotalAmount.Currency().String(),
		TotalAmount: b.TotalAmount.Amount(),
		ProjectIDs:  b.ProjectIDs,
		ProgramIDs:  b.ProgramIDs,
		Status:      string(b.Status),
		CloseReason: b.CloseReason,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		Version:     b.Version,
	}
}
