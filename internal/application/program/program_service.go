package program

import (
	"context"
	"fmt"

	appevent "github.com/casehub/backend/internal/application/event"
	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProgramService handles program operations and publishes program events
type ProgramService struct {
	repo            program.Repository
	publisher       shared.EventPublisher
	locks           *locking.KeyedMutex
	logger          *zap.Logger
	defaultCurrency valueobject.Currency
}

// ProgramServiceOption configures ProgramService
type ProgramServiceOption func(*ProgramService)

// WithLocks shares a KeyedMutex with the program projections
func WithLocks(locks *locking.KeyedMutex) ProgramServiceOption {
	return func(s *ProgramService) {
		s.locks = locks
	}
}

// WithDefaultCurrency sets the currency used when a request names none
func WithDefaultCurrency(c valueobject.Currency) ProgramServiceOption {
	return func(s *ProgramService) {
		s.defaultCurrency = c
	}
}

// NewProgramService creates a new ProgramService
func NewProgramService(repo program.Repository, publisher shared.EventPublisher, logger *zap.Logger, opts ...ProgramServiceOption) *ProgramService {
	s := &ProgramService{
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

// Create creates a planned program
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest, actor uuid.UUID) (resp *ProgramResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "program", "create", attribute.String("program.code", req.Code))
	defer func() { telemetry.EndSpan(span, err) }()

	currency := s.defaultCurrency
	if req.Currency != "" {
		if currency, err = valueobject.ParseCurrency(req.Currency); err != nil {
			return nil, err
		}
	}
	amount, err := valueobject.NewMoney(req.BudgetAmount, currency)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("program code %q already exists", req.Code))
	}

	p, err := program.NewProgram(req.Code, req.Name, req.Description, req.BudgetID, amount, actor)
	if err != nil {
		return nil, err
	}
	if err = s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	appevent.PublishRecorded(ctx, s.publisher, p, s.logger)

	s.logger.Info("program created",
		zap.String("program_id", p.ID.String()),
		zap.String("code", p.Code),
		zap.String("budget", p.BudgetAmount.Display()),
	)
	response := ToProgramResponse(p)
	return &response, nil
}

// GetByID retrieves a program
func (s *ProgramService) GetByID(ctx context.Context, id uuid.UUID) (*ProgramResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToProgramResponse(p)
	return &response, nil
}

// Update edits a program. Entering COMPLETED also publishes program-completed.
func (s *ProgramService) Update(ctx context.Context, id uuid.UUID, req UpdateProgramRequest, actor uuid.UUID) (*ProgramResponse, error) {
	return s.mutate(ctx, id, "update", func(p *program.Program) (bool, error) {
		update := program.Update{Name: req.Name, Description: req.Description}
		if req.Status != nil {
			status := program.Status(*req.Status)
			update.Status = &status
		}
		changed, err := p.Apply(update, actor)
		return len(changed) > 0, err
	})
}

// RecordExpenditure adds to the program's spent amount
func (s *ProgramService) RecordExpenditure(ctx context.Context, id uuid.UUID, req RecordExpenditureRequest, actor uuid.UUID) (*ProgramResponse, error) {
	return s.mutate(ctx, id, "record_expenditure", func(p *program.Program) (bool, error) {
		currency := p.Currency
		if req.Currency != "" {
			c, err := valueobject.ParseCurrency(req.Currency)
			if err != nil {
				return false, err
			}
			currency = c
		}
		amount, err := valueobject.NewMoney(req.Amount, currency)
		if err != nil {
			return false, err
		}
		return true, p.RecordExpenditure(amount, actor)
	})
}

func (s *ProgramService) mutate(ctx context.Context, id uuid.UUID, action string, fn func(p *program.Program) (bool, error)) (resp *ProgramResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "program", action, attribute.String("program.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(p)
	if err != nil {
		return nil, err
	}
	if changed {
		if err = s.repo.Update(ctx, p); err != nil {
			return nil, err
		}
		appevent.PublishRecorded(ctx, s.publisher, p, s.logger)
		s.logger.Info("program "+action,
			zap.String("program_id", p.ID.String()),
			zap.String("status", string(p.Status)),
			zap.String("spent", p.SpentAmount.Display()),
		)
	}
	response := ToProgramResponse(p)
	return &response, nil
}
