package casework

import (
	"time"

	"github.com/casehub/backend/internal/domain/casework"
	"github.com/google/uuid"
)

// CreateCaseRequest represents a request to open a case
type CreateCaseRequest struct {
	Title         string     `json:"title" binding:"required,min=1,max=200"`
	Description   string     `json:"description" binding:"max=5000"`
	BeneficiaryID uuid.UUID  `json:"beneficiary_id" binding:"required"`
	ProgramID     *uuid.UUID `json:"program_id"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
}

// UpdateCaseRequest represents a partial case update; nil fields are unchanged
type UpdateCaseRequest struct {
	Title         *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description   *string    `json:"description" binding:"omitempty,max=5000"`
	ProgramID     *uuid.UUID `json:"program_id"`
	ClearProgram  bool       `json:"clear_program"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
	Status        *string    `json:"status" binding:"omitempty,oneof=OPEN IN_PROGRESS ON_HOLD CLOSED"`
	StatusReason  string     `json:"status_reason" binding:"max=500"`
}

// CaseListFilter represents filter options for case list
type CaseListFilter struct {
	ProgramID     string `form:"program_id" binding:"omitempty,uuid"`
	BeneficiaryID string `form:"beneficiary_id" binding:"omitempty,uuid"`
	Status        string `form:"status" binding:"omitempty,oneof=OPEN IN_PROGRESS ON_HOLD CLOSED"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// CaseResponse represents a case in API responses
type CaseResponse struct {
	ID            uuid.UUID  `json:"id"`
	CaseNumber    string     `json:"case_number"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	BeneficiaryID uuid.UUID  `json:"beneficiary_id"`
	ProgramID     *uuid.UUID `json:"program_id,omitempty"`
	AssigneeID    *uuid.UUID `json:"assignee_id,omitempty"`
	Status        string     `json:"status"`
	StatusReason  string     `json:"status_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version"`
}

// ToCaseResponse converts a domain case
func ToCaseResponse(c *casework.Case) CaseResponse {
	return CaseResponse{
		ID:            c.ID,
		CaseNumber:    c.CaseNumber,
		Title:         c.Title,
		Description:   c.Description,
		BeneficiaryID: c.BeneficiaryID,
		ProgramID:     c.ProgramID,
		AssigneeID:    c.AssigneeID,
		Status:        string(c.Status),
		StatusReason:  c.StatusReason,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Version:       c.Version,
	}
}

// ToCaseResponses converts a page of cases
func ToCaseResponses(cases []casework.Case) []CaseResponse {
	responses := make([]CaseResponse, len(cases))
	for i := range cases {
		responses[i] = ToCaseResponse(&cases[i])
	}
	return responses
}
