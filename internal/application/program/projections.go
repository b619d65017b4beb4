package program

import (
	"context"
	"errors"
	"fmt"

	"github.com/casehub/backend/internal/domain/casework"
	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaseCountConsumer namespaces the idempotency keys of ProgramCaseCountProjection
const CaseCountConsumer = "program-case-count"

// ProgramBudgetProjection keeps Program.BudgetAmount in step with
// budget-changed events. The amount is absolute and stamped with the event
// time, so replays and stale deliveries are ignored without a store.
type ProgramBudgetProjection struct {
	repo   program.Repository
	locks  *locking.KeyedMutex
	logger *zap.Logger
}

// NewProgramBudgetProjection creates the projection. Pass the same locks as
// ProgramService so projection writes serialize with user edits.
func NewProgramBudgetProjection(repo program.Repository, locks *locking.KeyedMutex, logger *zap.Logger) *ProgramBudgetProjection {
	if locks == nil {
		locks = locking.NewKeyedMutex()
	}
	return &ProgramBudgetProjection{repo: repo, locks: locks, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ProgramBudgetProjection) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventTypeBudgetChanged}
}

// Handle applies the new budget amount to every affected program
func (h *ProgramBudgetProjection) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, ok := event.Payload().(shared.BudgetChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s", shared.EventTypeBudgetChanged, event.Type())
	}
	currency, err := valueobject.ParseCurrency(payload.Currency)
	if err != nil {
		return fmt.Errorf("failed to parse budget currency: %w", err)
	}
	amount := valueobject.RestoreMoney(payload.NewAmount, currency)

	var errs []error
	for _, programID := range payload.AffectedProgramIDs {
		if err := h.apply(ctx, programID, amount, event); err != nil {
			errs = append(errs, fmt.Errorf("program %s: %w", programID, err))
		}
	}
	return errors.Join(errs...)
}

func (h *ProgramBudgetProjection) apply(ctx context.Context, programID uuid.UUID, amount valueobject.Money, event shared.DomainEvent) error {
	unlock, err := h.locks.Lock(ctx, programID)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := h.repo.FindByID(ctx, programID)
	if errors.Is(err, shared.ErrNotFound) {
		h.logger.Warn("budget-changed names unknown program",
			zap.String("program_id", programID.String()),
			zap.String("event_id", event.ID().String()),
		)
		return nil
	}
	if err != nil {
		return err
	}

	applied, err := p.ApplyBudgetAmount(amount, event.OccurredAt())
	if err != nil {
		return err
	}
	if !applied {
		h.logger.Debug("stale budget-changed skipped",
			zap.String("program_id", programID.String()),
			zap.String("event_id", event.ID().String()),
		)
		return nil
	}
	if err := h.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save program budget: %w", err)
	}
	h.logger.Info("program budget synced",
		zap.String("program_id", programID.String()),
		zap.String("budget", amount.Display()),
		zap.String("event_id", event.ID().String()),
	)
	return nil
}

// ProgramCaseCountProjection maintains Program.OpenCaseCount from case events.
// Its increments are not idempotent; wrap it in event.NewIdempotentHandler
// with CaseCountConsumer before subscribing.
type ProgramCaseCountProjection struct {
	repo   program.Repository
	locks  *locking.KeyedMutex
	logger *zap.Logger
}

// NewProgramCaseCountProjection creates the projection
func NewProgramCaseCountProjection(repo program.Repository, locks *locking.KeyedMutex, logger *zap.Logger) *ProgramCaseCountProjection {
	if locks == nil {
		locks = locking.NewKeyedMutex()
	}
	return &ProgramCaseCountProjection{repo: repo, locks: locks, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ProgramCaseCountProjection) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventTypeCaseCreated,
		shared.EventTypeCaseUpdated,
		shared.EventTypeCaseStatusChanged,
	}
}

// caseCountAdjustment is a change to one program's open-case count
type caseCountAdjustment struct {
	programID uuid.UUID
	delta     int
}

// Handle adjusts the open-case count of every program the event touches
func (h *ProgramCaseCountProjection) Handle(ctx context.Context, event shared.DomainEvent) error {
	for _, adj := range caseCountAdjustments(event.Payload()) {
		if err := h.adjust(ctx, event, adj); err != nil {
			return err
		}
	}
	return nil
}

func (h *ProgramCaseCountProjection) adjust(ctx context.Context, event shared.DomainEvent, adj caseCountAdjustment) error {
	unlock, err := h.locks.Lock(ctx, adj.programID)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := h.repo.FindByID(ctx, adj.programID)
	if errors.Is(err, shared.ErrNotFound) {
		h.logger.Warn("case event names unknown program",
			zap.String("program_id", adj.programID.String()),
			zap.String("event_id", event.ID().String()),
		)
		return nil
	}
	if err != nil {
		return err
	}

	p.AdjustOpenCaseCount(adj.delta)
	if err := h.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save open case count: %w", err)
	}
	h.logger.Debug("program open case count adjusted",
		zap.String("program_id", adj.programID.String()),
		zap.Int("delta", adj.delta),
		zap.Int("open_cases", p.OpenCaseCount),
	)
	return nil
}

// caseCountAdjustments maps a case event to open-case count changes.
// Moving between open statuses does not change the count. An open case that
// moves program is counted out of the old program and into the new one; any
// status change in the same update arrives as case-status-changed against
// the new program.
func caseCountAdjustments(payload shared.EventPayload) []caseCountAdjustment {
	var out []caseCountAdjustment
	add := func(programID *uuid.UUID, delta int) {
		if programID != nil {
			out = append(out, caseCountAdjustment{programID: *programID, delta: delta})
		}
	}

	switch p := payload.(type) {
	case shared.CaseCreatedPayload:
		if isOpenCaseStatus(p.Status) {
			add(p.ProgramID, 1)
		}
	case shared.CaseUpdatedPayload:
		if isOpenCaseStatus(p.PreviousStatus) && !sameProgram(p.PreviousProgramID, p.ProgramID) {
			add(p.PreviousProgramID, -1)
			add(p.ProgramID, 1)
		}
	case shared.CaseStatusChangedPayload:
		wasOpen, isOpen := isOpenCaseStatus(p.PreviousStatus), isOpenCaseStatus(p.NewStatus)
		switch {
		case wasOpen && !isOpen:
			add(p.ProgramID, -1)
		case !wasOpen && isOpen:
			add(p.ProgramID, 1)
		}
	}
	return out
}

func sameProgram(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isOpenCaseStatus(status string) bool {
	return casework.Status(status).IsOpen()
}
