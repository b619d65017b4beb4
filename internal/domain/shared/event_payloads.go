package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventPayload is the tagged union of payload shapes, one per EventType.
// The unexported method seals the union to this package.
type EventPayload interface {
	EventType() EventType
	clonePayload() EventPayload
}

// BudgetChangedPayload is carried by budget-changed.
type BudgetChangedPayload struct {
	BudgetID           uuid.UUID       `json:"budget_id"`
	Currency           string          `json:"currency"`
	PreviousAmount     decimal.Decimal `json:"previous_amount"`
	NewAmount          decimal.Decimal `json:"new_amount"`
	Reason             string          `json:"reason"`
	AffectedProjectIDs []uuid.UUID     `json:"affected_project_ids"`
	AffectedProgramIDs []uuid.UUID     `json:"affected_program_ids"`
}

func (BudgetChangedPayload) EventType() EventType { return EventTypeBudgetChanged }

func (p BudgetChangedPayload) clonePayload() EventPayload {
	p.AffectedProjectIDs = cloneIDs(p.AffectedProjectIDs)
	p.AffectedProgramIDs = cloneIDs(p.AffectedProgramIDs)
	return p
}

// CaseCreatedPayload is carried by case-created.
type CaseCreatedPayload struct {
	CaseID        uuid.UUID  `json:"case_id"`
	CaseNumber    string     `json:"case_number"`
	Title         string     `json:"title"`
	BeneficiaryID uuid.UUID  `json:"beneficiary_id"`
	ProgramID     *uuid.UUID `json:"program_id,omitempty"`
	Status        string     `json:"status"`
}

func (CaseCreatedPayload) EventType() EventType { return EventTypeCaseCreated }

func (p CaseCreatedPayload) clonePayload() EventPayload {
	p.ProgramID = cloneIDPtr(p.ProgramID)
	return p
}

// CaseUpdatedPayload is carried by case-updated. PreviousProgramID and
// PreviousStatus describe the case before the update.
type CaseUpdatedPayload struct {
	CaseID            uuid.UUID  `json:"case_id"`
	ProgramID         *uuid.UUID `json:"program_id,omitempty"`
	PreviousProgramID *uuid.UUID `json:"previous_program_id,omitempty"`
	PreviousStatus    string     `json:"previous_status"`
	ChangedFields     []string   `json:"changed_fields"`
}

func (CaseUpdatedPayload) EventType() EventType { return EventTypeCaseUpdated }

func (p CaseUpdatedPayload) clonePayload() EventPayload {
	p.ProgramID = cloneIDPtr(p.ProgramID)
	p.PreviousProgramID = cloneIDPtr(p.PreviousProgramID)
	p.ChangedFields = cloneStrings(p.ChangedFields)
	return p
}

// CaseStatusChangedPayload is carried by case-status-changed.
type CaseStatusChangedPayload struct {
	CaseID         uuid.UUID  `json:"case_id"`
	ProgramID      *uuid.UUID `json:"program_id,omitempty"`
	PreviousStatus string     `json:"previous_status"`
	NewStatus      string     `json:"new_status"`
	Reason         string     `json:"reason,omitempty"`
}

func (CaseStatusChangedPayload) EventType() EventType { return EventTypeCaseStatusChanged }

func (p CaseStatusChangedPayload) clonePayload() EventPayload {
	p.ProgramID = cloneIDPtr(p.ProgramID)
	return p
}

// ProgramCreatedPayload is carried by program-created.
type ProgramCreatedPayload struct {
	ProgramID    uuid.UUID       `json:"program_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	BudgetID     *uuid.UUID      `json:"budget_id,omitempty"`
	Currency     string          `json:"currency"`
	BudgetAmount decimal.Decimal `json:"budget_amount"`
}

func (ProgramCreatedPayload) EventType() EventType { return EventTypeProgramCreated }

func (p ProgramCreatedPayload) clonePayload() EventPayload {
	p.BudgetID = cloneIDPtr(p.BudgetID)
	return p
}

// ProgramUpdatedPayload is carried by program-updated.
type ProgramUpdatedPayload struct {
	ProgramID     uuid.UUID `json:"program_id"`
	ChangedFields []string  `json:"changed_fields"`
}

func (ProgramUpdatedPayload) EventType() EventType { return EventTypeProgramUpdated }

func (p ProgramUpdatedPayload) clonePayload() EventPayload {
	p.ChangedFields = cloneStrings(p.ChangedFields)
	return p
}

// BudgetUtilization is a point-in-time view of a program's spending.
type BudgetUtilization struct {
	Currency     string          `json:"currency"`
	BudgetAmount decimal.Decimal `json:"budget_amount"`
	SpentAmount  decimal.Decimal `json:"spent_amount"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percent      decimal.Decimal `json:"percent"`
}

// ProgramCompletedPayload is carried by program-completed.
type ProgramCompletedPayload struct {
	ProgramID   uuid.UUID         `json:"program_id"`
	CompletedAt time.Time         `json:"completed_at"`
	Utilization BudgetUtilization `json:"utilization"`
}

func (ProgramCompletedPayload) EventType() EventType { return EventTypeProgramCompleted }

func (p ProgramCompletedPayload) clonePayload() EventPayload {
	return p
}

// DecodeEventPayload decodes raw JSON into the payload shape for t.
func DecodeEventPayload(t EventType, data []byte) (EventPayload, error) {
	var (
		payload EventPayload
		err     error
	)
	switch t {
	case EventTypeBudgetChanged:
		payload, err = decodeInto[BudgetChangedPayload](data)
	case EventTypeCaseCreated:
		payload, err = decodeInto[CaseCreatedPayload](data)
	case EventTypeCaseUpdated:
		payload, err = decodeInto[CaseUpdatedPayload](data)
	case EventTypeCaseStatusChanged:
		payload, err = decodeInto[CaseStatusChangedPayload](data)
	case EventTypeProgramCreated:
		payload, err = decodeInto[ProgramCreatedPayload](data)
	case EventTypeProgramUpdated:
		payload, err = decodeInto[ProgramUpdatedPayload](data)
	case EventTypeProgramCompleted:
		payload, err = decodeInto[ProgramCompletedPayload](data)
	default:
		return nil, NewValidationError("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return payload, nil
}

func decodeInto[T EventPayload](data []byte) (EventPayload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func cloneIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

func cloneIDPtr(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
