package casework

import (
	"context"
	"time"

	appevent "github.com/casehub/backend/internal/application/event"
	"github.com/casehub/backend/internal/domain/casework"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CaseService handles case operations and publishes case events
type CaseService struct {
	repo      casework.Repository
	numbers   casework.NumberGenerator
	publisher shared.EventPublisher
	locks     *locking.KeyedMutex
	logger    *zap.Logger
	now       func() time.Time
}

// CaseServiceOption configures CaseService
type CaseServiceOption func(*CaseService)

// WithLocks shares a KeyedMutex with other services
func WithLocks(locks *locking.KeyedMutex) CaseServiceOption {
	return func(s *CaseService) {
		s.locks = locks
	}
}

// WithClock overrides time.Now for case numbering
func WithClock(now func() time.Time) CaseServiceOption {
	return func(s *CaseService) {
		s.now = now
	}
}

// NewCaseService creates a new CaseService
func NewCaseService(
	repo casework.Repository,
	numbers casework.NumberGenerator,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...CaseServiceOption,
) *CaseService {
	s := &CaseService{
		repo:      repo,
		numbers:   numbers,
		publisher: publisher,
		locks:     locking.NewKeyedMutex(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a case and publishes case-created
func (s *CaseService) Create(ctx context.Context, req CreateCaseRequest, actor uuid.UUID) (resp *CaseResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "case", "create",
		attribute.String("beneficiary.id", req.BeneficiaryID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	number, err := s.numbers.NextCaseNumber(ctx, s.now())
	if err != nil {
		return nil, err
	}
	c, err := casework.NewCase(number, req.Title, req.Description, req.BeneficiaryID, req.ProgramID, req.AssigneeID, actor)
	if err != nil {
		return nil, err
	}
	if err = s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	appevent.PublishRecorded(ctx, s.publisher, c, s.logger)

	s.logger.Info("case created",
		zap.String("case_id", c.ID.String()),
		zap.String("case_number", c.CaseNumber),
		zap.String("actor_id", actor.String()),
	)
	response := ToCaseResponse(c)
	return &response, nil
}

// Update edits a case. Any change publishes case-updated; a differing status
// also publishes case-status-changed.
func (s *CaseService) Update(ctx context.Context, id uuid.UUID, req UpdateCaseRequest, actor uuid.UUID) (resp *CaseResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "case", "update", attribute.String("case.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	update := casework.Update{
		Title:         req.Title,
		Description:   req.Description,
		ProgramID:     req.ProgramID,
		ClearProgram:  req.ClearProgram,
		AssigneeID:    req.AssigneeID,
		ClearAssignee: req.ClearAssignee,
		StatusReason:  req.StatusReason,
	}
	if req.Status != nil {
		status := casework.Status(*req.Status)
		update.Status = &status
	}
	previous := c.Status
	changed, err := c.Apply(update, actor)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		if err = s.repo.Update(ctx, c); err != nil {
			return nil, err
		}
		appevent.PublishRecorded(ctx, s.publisher, c, s.logger)
		s.logger.Info("case updated",
			zap.String("case_id", c.ID.String()),
			zap.Strings("changed_fields", changed),
			zap.String("from_status", string(previous)),
			zap.String("to_status", string(c.Status)),
		)
	}
	response := ToCaseResponse(c)
	return &response, nil
}

// GetByID retrieves a case
func (s *CaseService) GetByID(ctx context.Context, id uuid.UUID) (*CaseResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCaseResponse(c)
	return &response, nil
}

// List retrieves a page of cases
func (s *CaseService) List(ctx context.Context, filter CaseListFilter) ([]CaseResponse, int64, error) {
	domainFilter := casework.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if filter.ProgramID != "" {
		id, err := uuid.Parse(filter.ProgramID)
		if err != nil {
			return nil, 0, shared.NewValidationError("invalid program_id").WithDetail("field", "program_id")
		}
		domainFilter.ProgramID = &id
	}
	if filter.BeneficiaryID != "" {
		id, err := uuid.Parse(filter.BeneficiaryID)
		if err != nil {
			return nil, 0, shared.NewValidationError("invalid beneficiary_id").WithDetail("field", "beneficiary_id")
		}
		domainFilter.BeneficiaryID = &id
	}
	if filter.Status != "" {
		status := casework.Status(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewValidationError("unknown case status %q", filter.Status).WithDetail("field", "status")
		}
		domainFilter.Status = &status
	}

	cases, total, err := s.repo.List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCaseResponses(cases), total, nil
}
