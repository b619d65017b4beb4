package budget

import (
	"context"
	"fmt"

	appevent "github.com/casehub/backend/internal/application/event"
	"github.com/casehub/backend/internal/domain/budget"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BudgetService manages budgets and announces amount changes on the bus
type BudgetService struct {
	repo            budget.Repository
	publisher       shared.EventPublisher
	locks           *locking.KeyedMutex
	logger          *zap.Logger
	defaultCurrency valueobject.Currency
}

// BudgetServiceOption configures BudgetService
type BudgetServiceOption func(*BudgetService)

// WithLocks shares a KeyedMutex with other services
func WithLocks(locks *locking.KeyedMutex) BudgetServiceOption {
	return func(s *BudgetService) {
		s.locks = locks
	}
}

// WithDefaultCurrency sets the currency used when a request names none
func WithDefaultCurrency(c valueobject.Currency) BudgetServiceOption {
	return func(s *BudgetService) {
		s.defaultCurrency = c
	}
}

// NewBudgetService creates a new BudgetService
func NewBudgetService(repo budget.Repository, publisher shared.EventPublisher, logger *zap.Logger, opts ...BudgetServiceOption) *BudgetService {
	s := &BudgetService{
		repo:            repo,
		publisher:       publisher,
		locks:           locking.NewKeyedMutex(),
		logger:          logger,
		defaultCurrency: valueobject.USD,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates an active budget
func (s *BudgetService) Create(ctx context.Context, req CreateBudgetRequest, actor uuid.UUID) (resp *BudgetResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "budget", "create", attribute.String("budget.code", req.Code))
	defer func() { telemetry.EndSpan(span, err) }()

	currency := s.defaultCurrency
	if req.Currency != "" {
		if currency, err = valueobject.ParseCurrency(req.Currency); err != nil {
			return nil, err
		}
	}
	total, err := valueobject.NewMoney(req.TotalAmount, currency)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("budget code %q already exists", req.Code))
	}

	b, err := budget.NewBudget(req.Code, req.Name, total, req.ProjectIDs, req.ProgramIDs, actor)
	if err != nil {
		return nil, err
	}
	if err = s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	appevent.PublishRecorded(ctx, s.publisher, b, s.logger)

	s.logger.Info("budget created",
		zap.String("budget_id", b.ID.String()),
		zap.String("code", b.Code),
		zap.String("total", b.TotalAmount.Display()),
	)
	response := ToBudgetResponse(b)
	return &response, nil
}

// GetByID retrieves a budget
func (s *BudgetService) GetByID(ctx context.Context, id uuid.UUID) (*BudgetResponse, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToBudgetResponse(b)
	return &response, nil
}

// Update changes a budget. A changed total publishes exactly one
// budget-changed event after the write; nothing is published on failure.
func (s *BudgetService) Update(ctx context.Context, id uuid.UUID, req UpdateBudgetRequest, actor uuid.UUID) (*BudgetResponse, error) {
	return s.mutate(ctx, id, "update", func(b *budget.Budget) (bool, error) {
		update := budget.Update{
			Name:       req.Name,
			ProjectIDs: req.ProjectIDs,
			ProgramIDs: req.ProgramIDs,
		}
		if req.TotalAmount != nil {
			total, err := valueobject.NewMoney(*req.TotalAmount, b.TotalAmount.Currency())
			if err != nil {
				return false, err
			}
			update.TotalAmount = &total
		}
		changed, err := b.Apply(update, req.Reason, actor)
		return len(changed) > 0, err
	})
}

// Close closes a budget; programs see the amount drop to zero
func (s *BudgetService) Close(ctx context.Context, id uuid.UUID, req CloseBudgetRequest, actor uuid.UUID) (*BudgetResponse, error) {
	return s.mutate(ctx, id, "close", func(b *budget.Budget) (bool, error) {
		return true, b.Close(req.Reason, actor)
	})
}

// Delete removes a budget and publishes budget-changed with action delete
func (s *BudgetService) Delete(ctx context.Context, id uuid.UUID, req DeleteBudgetRequest, actor uuid.UUID) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "budget", "delete", attribute.String("budget.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	reason := req.Reason
	if reason == "" {
		reason = "budget deleted"
	}
	b.MarkDeleted(reason, actor)
	if err = s.repo.Delete(ctx, id); err != nil {
		return err
	}
	appevent.PublishRecorded(ctx, s.publisher, b, s.logger)

	s.logger.Info("budget deleted", zap.String("budget_id", id.String()), zap.String("actor_id", actor.String()))
	return nil
}

// mutate runs fn on the locked budget and saves it when fn reports a change
func (s *BudgetService) mutate(ctx context.Context, id uuid.UUID, action string, fn func(b *budget.Budget) (bool, error)) (resp *BudgetResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "budget", action, attribute.String("budget.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(b)
	if err != nil {
		return nil, err
	}
	if changed {
		if err = s.repo.Update(ctx, b); err != nil {
			return nil, err
		}
		published := appevent.PublishRecorded(ctx, s.publisher, b, s.logger)
		s.logger.Info("budget "+action,
			zap.String("budget_id", b.ID.String()),
			zap.String("total", b.TotalAmount.Display()),
			zap.Int("events", published),
		)
	}
	response := ToBudgetResponse(b)
	return &response, nil
}
