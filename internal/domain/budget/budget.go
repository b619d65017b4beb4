package budget

import (
	"context"
	"slices"
	"strings"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// EventSource names this module on every event it emits
const EventSource = "budget-service"

// Status represents the lifecycle status of a budget
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusClosed
}

// Budget is a funding envelope shared by projects and programs
type Budget struct {
	shared.BaseAggregateRoot
	Code        string
	Name        string
	TotalAmount valueobject.Money
	ProjectIDs  []uuid.UUID
	ProgramIDs  []uuid.UUID
	Status      Status
	CloseReason string
}

// NewBudget creates an active budget and records a budget-changed event
// from zero so dependent programs pick up the initial amount.
func NewBudget(code, name string, total valueobject.Money, projectIDs, programIDs []uuid.UUID, actor uuid.UUID) (*Budget, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("budget code is required").WithDetail("field", "code")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("budget code cannot exceed 50 characters").WithDetail("field", "code")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("budget name is required").WithDetail("field", "name")
	}
	if total.IsNegative() {
		return nil, shared.NewInvalidAmountError("budget amount cannot be negative")
	}

	b := &Budget{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		TotalAmount:       total,
		ProjectIDs:        dedupe(projectIDs),
		ProgramIDs:        dedupe(programIDs),
		Status:            StatusActive,
	}
	b.CreatedBy = actor
	b.recordChange(valueobject.Zero(total.Currency()), total, "budget created", "create", actor)
	return b, nil
}

// Update holds the fields to change; nil means unchanged
type Update struct {
	Name        *string
	TotalAmount *valueobject.Money
	ProjectIDs  []uuid.UUID // nil keeps the current links
	ProgramIDs  []uuid.UUID
}

// Apply changes the budget and returns the changed field names. A changed
// total records exactly one budget-changed event.
func (b *Budget) Apply(u Update, reason string, actor uuid.UUID) ([]string, error) {
	if b.Status == StatusClosed {
		return nil, shared.NewInvalidStateTransitionError("update budget", string(b.Status))
	}

	var changed []string
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, shared.NewValidationError("budget name is required").WithDetail("field", "name")
		}
		if name != b.Name {
			changed = append(changed, "name")
		}
	}

	previous := b.TotalAmount
	amountChanged := false
	if u.TotalAmount != nil {
		cmp, err := u.TotalAmount.Compare(b.TotalAmount)
		if err != nil {
			return nil, err
		}
		if u.TotalAmount.IsNegative() {
			return nil, shared.NewInvalidAmountError("budget amount cannot be negative")
		}
		if cmp != 0 {
			amountChanged = true
			changed = append(changed, "total_amount")
		}
	}

	projects, programs := b.ProjectIDs, b.ProgramIDs
	if u.ProjectIDs != nil {
		projects = dedupe(u.ProjectIDs)
		if !sameIDs(projects, b.ProjectIDs) {
			changed = append(changed, "project_ids")
		}
	}
	if u.ProgramIDs != nil {
		programs = dedupe(u.ProgramIDs)
		if !sameIDs(programs, b.ProgramIDs) {
			changed = append(changed, "program_ids")
		}
	}

	if len(changed) == 0 {
		return nil, nil
	}

	if u.Name != nil {
		b.Name = strings.TrimSpace(*u.Name)
	}
	b.ProjectIDs, b.ProgramIDs = projects, programs
	if amountChanged {
		b.TotalAmount = *u.TotalAmount
		b.recordChange(previous, b.TotalAmount, reason, "update", actor)
	}
	b.touch(actor)
	return changed, nil
}

// Close freezes the budget; dependent programs see the amount drop to zero
func (b *Budget) Close(reason string, actor uuid.UUID) error {
	if b.Status == StatusClosed {
		return shared.NewInvalidStateTransitionError("close budget", string(b.Status))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("close reason is required").WithDetail("field", "reason")
	}
	previous := b.TotalAmount
	b.Status = StatusClosed
	b.CloseReason = reason
	b.recordChange(previous, valueobject.Zero(previous.Currency()), reason, "close", actor)
	b.touch(actor)
	return nil
}

// MarkDeleted records the deletion event; the repository removes the row
func (b *Budget) MarkDeleted(reason string, actor uuid.UUID) {
	b.recordChange(b.TotalAmount, valueobject.Zero(b.TotalAmount.Currency()), reason, "delete", actor)
}

func (b *Budget) recordChange(previous, next valueobject.Money, reason, action string, actor uuid.UUID) {
	opts := []shared.EventOption{shared.WithMetadata(shared.MetadataAction, action)}
	if actor != uuid.Nil {
		opts = append(opts, shared.WithMetadata(shared.MetadataActorID, actor.String()))
	}
	b.AddDomainEvent(shared.NewDomainEvent(EventSource, b.ID, shared.BudgetChangedPayload{
		BudgetID:           b.ID,
		Currency:           previous.Currency().String(),
		PreviousAmount:     previous.Amount(),
		NewAmount:          next.Amount(),
		Reason:             reason,
		AffectedProjectIDs: b.ProjectIDs,
		AffectedProgramIDs: b.ProgramIDs,
	}, opts...))
}

func (b *Budget) touch(actor uuid.UUID) {
	b.MarkUpdatedBy(actor)
	b.Touch()
	b.IncrementVersion()
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}

// Repository persists budgets
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Budget, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, b *Budget) error
	// Update saves with optimistic locking on Version-1
	Update(ctx context.Context, b *Budget) error
	Delete(ctx context.Context, id uuid.UUID) error
}
