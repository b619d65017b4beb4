package program

import (
	"context"
	"strings"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventSource names this module on every event it emits
const EventSource = "program-service"

// Status represents the lifecycle status of a program
type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for completed and cancelled programs
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving to next
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPlanned:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Program groups cases under a shared budget. BudgetAmount and
// OpenCaseCount are projections maintained from budget and case events.
type Program struct {
	shared.BaseAggregateRoot
	Code           string
	Name           string
	Description    string
	Status         Status
	Currency       valueobject.Currency
	BudgetID       *uuid.UUID
	BudgetAmount   valueobject.Money
	SpentAmount    valueobject.Money
	OpenCaseCount  int
	BudgetSyncedAt *time.Time
	CompletedAt    *time.Time
}

// NewProgram creates a planned program and records program-created
func NewProgram(code, name, description string, budgetID *uuid.UUID, budgetAmount valueobject.Money, actor uuid.UUID) (*Program, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("program code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("program name is required").WithDetail("field", "name")
	}
	if budgetAmount.IsNegative() {
		return nil, shared.NewInvalidAmountError("budget amount cannot be negative")
	}

	currency := budgetAmount.Currency()
	p := &Program{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              strings.TrimSpace(name),
		Description:       description,
		Status:            StatusPlanned,
		Currency:          currency,
		BudgetID:          budgetID,
		BudgetAmount:      budgetAmount,
		SpentAmount:       valueobject.Zero(currency),
	}
	p.CreatedBy = actor
	p.AddDomainEvent(shared.NewDomainEvent(EventSource, p.ID, shared.ProgramCreatedPayload{
		ProgramID:    p.ID,
		Code:         p.Code,
		Name:         p.Name,
		BudgetID:     p.BudgetID,
		Currency:     currency.String(),
		BudgetAmount: budgetAmount.Amount(),
	}, actorMetadata(actor)...))
	return p, nil
}

// Update holds the fields to change; nil means unchanged
type Update struct {
	Name        *string
	Description *string
	Status      *Status
}

// Apply changes the program and returns the changed field names. Any change
// records program-updated; entering COMPLETED also records program-completed
// with a utilization snapshot.
func (p *Program) Apply(u Update, actor uuid.UUID) ([]string, error) {
	if p.Status.IsTerminal() {
		return nil, shared.NewInvalidStateTransitionError("edit program", string(p.Status))
	}
	if u.Status != nil && !u.Status.IsValid() {
		return nil, shared.NewValidationError("unknown program status %q", string(*u.Status)).
			WithDetail("field", "status")
	}
	statusChanged := u.Status != nil && *u.Status != p.Status
	if statusChanged && !p.Status.CanTransitionTo(*u.Status) {
		return nil, shared.NewInvalidStateTransitionError("move program to "+string(*u.Status), string(p.Status))
	}

	var changed []string
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, shared.NewValidationError("program name is required").WithDetail("field", "name")
		}
		if name != p.Name {
			changed = append(changed, "name")
		}
	}
	if u.Description != nil && *u.Description != p.Description {
		changed = append(changed, "description")
	}
	if statusChanged {
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return nil, nil
	}

	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	meta := actorMetadata(actor)
	if statusChanged {
		p.Status = *u.Status
	}
	p.AddDomainEvent(shared.NewDomainEvent(EventSource, p.ID, shared.ProgramUpdatedPayload{
		ProgramID:     p.ID,
		ChangedFields: changed,
	}, meta...))
	if statusChanged && p.Status == StatusCompleted {
		now := time.Now().UTC()
		p.CompletedAt = &now
		p.AddDomainEvent(shared.NewDomainEvent(EventSource, p.ID, shared.ProgramCompletedPayload{
			ProgramID:   p.ID,
			CompletedAt: now,
			Utilization: p.Utilization(),
		}, meta...))
	}

	p.touch(actor)
	return changed, nil
}

// RecordExpenditure adds to the spent amount and records program-updated
func (p *Program) RecordExpenditure(amount valueobject.Money, actor uuid.UUID) error {
	if p.Status.IsTerminal() {
		return shared.NewInvalidStateTransitionError("record expenditure", string(p.Status))
	}
	if amount.Currency() != p.Currency {
		return shared.NewCurrencyMismatchError(p.Currency.String(), amount.Currency().String())
	}
	if !amount.IsPositive() {
		return shared.NewInvalidAmountError("expenditure must be positive, got %s", amount.Amount().String())
	}
	spent, err := p.SpentAmount.Add(amount)
	if err != nil {
		return err
	}
	p.SpentAmount = spent
	p.AddDomainEvent(shared.NewDomainEvent(EventSource, p.ID, shared.ProgramUpdatedPayload{
		ProgramID:     p.ID,
		ChangedFields: []string{"spent_amount"},
	}, actorMetadata(actor)...))
	p.touch(actor)
	return nil
}

// ApplyBudgetAmount sets the projected budget amount from a budget-changed
// event. Events not newer than the last applied one are ignored, which makes
// redelivery and out-of-order arrival harmless. Returns whether it applied.
func (p *Program) ApplyBudgetAmount(amount valueobject.Money, at time.Time) (bool, error) {
	if p.BudgetSyncedAt != nil && !at.After(*p.BudgetSyncedAt) {
		return false, nil
	}
	if amount.Currency() != p.Currency {
		return false, shared.NewCurrencyMismatchError(p.Currency.String(), amount.Currency().String())
	}
	synced := at.UTC()
	p.BudgetAmount = amount
	p.BudgetSyncedAt = &synced
	p.Touch()
	p.IncrementVersion()
	return true, nil
}

// AdjustOpenCaseCount moves the open-case projection by delta, floored at zero
func (p *Program) AdjustOpenCaseCount(delta int) {
	p.OpenCaseCount += delta
	if p.OpenCaseCount < 0 {
		p.OpenCaseCount = 0
	}
	p.Touch()
	p.IncrementVersion()
}

// Utilization snapshots budget use; percent is rounded to two places
func (p *Program) Utilization() shared.BudgetUtilization {
	remaining, _ := p.BudgetAmount.Subtract(p.SpentAmount)
	percent := decimal.Zero
	if p.BudgetAmount.IsPositive() {
		percent = p.SpentAmount.Amount().
			Div(p.BudgetAmount.Amount()).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return shared.BudgetUtilization{
		Currency:     p.Currency.String(),
		BudgetAmount: p.BudgetAmount.Round().Amount(),
		SpentAmount:  p.SpentAmount.Round().Amount(),
		Remaining:    remaining.Round().Amount(),
		Percent:      percent,
	}
}

func (p *Program) touch(actor uuid.UUID) {
	p.MarkUpdatedBy(actor)
	p.Touch()
	p.IncrementVersion()
}

func actorMetadata(actor uuid.UUID) []shared.EventOption {
	if actor == uuid.Nil {
		return nil
	}
	return []shared.EventOption{shared.WithMetadata(shared.MetadataActorID, actor.String())}
}

// Repository persists programs
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Program, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, p *Program) error
	// Update saves with optimistic locking on Version-1
	Update(ctx context.Context, p *Program) error
}
