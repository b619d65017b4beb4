package program

import (
	"time"

	"github.com/casehub/backend/internal/domain/program"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProgramRequest represents a request to create a program
type CreateProgramRequest struct {
	Code         string          `json:"code" binding:"required,min=1,max=50"`
	Name         string          `json:"name" binding:"required,min=1,max=200"`
	Description  string          `json:"description" binding:"max=2000"`
	BudgetID     *uuid.UUID      `json:"budget_id"`
	Currency     string          `json:"currency" binding:"omitempty,currency"`
	BudgetAmount decimal.Decimal `json:"budget_amount"`
}

// UpdateProgramRequest represents a partial program update
type UpdateProgramRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Status      *string `json:"status" binding:"omitempty,oneof=PLANNED ACTIVE COMPLETED CANCELLED"`
}

// RecordExpenditureRequest represents money spent by a program
type RecordExpenditureRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Currency string          `json:"currency" binding:"omitempty,currency"` // defaults to the program currency
}

// ProgramResponse represents a program in API responses
type ProgramResponse struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	BudgetID       *uuid.UUID      `json:"budget_id,omitempty"`
	BudgetAmount   decimal.Decimal `json:"budget_amount"`
	SpentAmount    decimal.Decimal `json:"spent_amount"`
	Remaining      decimal.Decimal `json:"remaining"`
	Utilization    decimal.Decimal `json:"utilization_percent"`
	OpenCaseCount  int             `json:"open_case_count"`
	BudgetSyncedAt *time.Time      `json:"budget_synced_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// ToProgramResponse converts a domain program
func ToProgramResponse(p *program.Program) ProgramResponse {
	u := p.Utilization()
	return ProgramResponse{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		Status:         string(p.Status),
		Currency:       p.Currency.String(),
		BudgetID:       p.BudgetID,
		BudgetAmount:   u.BudgetAmount,
		SpentAmount:    u.SpentAmount,
		Remaining:      u.Remaining,
		Utilization:    u.Percent,
		OpenCaseCount:  p.OpenCaseCount,
		BudgetSyncedAt: p.BudgetSyncedAt,
		CompletedAt:    p.CompletedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Version:        p.Version,
	}
}
