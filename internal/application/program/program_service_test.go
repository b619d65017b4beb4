package program

import (
	"context"
	"testing"

	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/domain/shared"
	infraevent "github.com/casehub/backend/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventLog struct {
	events []shared.DomainEvent
}

func (l *eventLog) types() []shared.EventType {
	out := make([]shared.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type()
	}
	return out
}

func newServiceFixture(t *testing.T) (*ProgramService, *memoryProgramRepository, *eventLog) {
	t.Helper()
	repo := newMemoryProgramRepository()
	bus := infraevent.NewInMemoryEventBus(zap.NewNop())
	log := &eventLog{}
	bus.Subscribe("program-*", shared.EventHandlerFunc(func(ctx context.Context, event shared.DomainEvent) error {
		log.events = append(log.events, event)
		return nil
	}))
	return NewProgramService(repo, bus, zap.NewNop()), repo, log
}

func createProgram(t *testing.T, svc *ProgramService, budget int64) *ProgramResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), CreateProgramRequest{
		Code:         "FOOD-26",
		Name:         "Food security",
		BudgetAmount: decimal.NewFromInt(budget),
	}, uuid.New())
	require.NoError(t, err)
	return resp
}

func TestProgramService_Create(t *testing.T) {
	svc, _, log := newServiceFixture(t)

	resp := createProgram(t, svc, 10000)

	assert.Equal(t, "PLANNED", resp.Status)
	assert.Equal(t, "USD", resp.Currency)
	assert.True(t, resp.BudgetAmount.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, []shared.EventType{shared.EventTypeProgramCreated}, log.types())

	_, err := svc.Create(context.Background(), CreateProgramRequest{Code: "FOOD-26", Name: "Again"}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestProgramService_Update_CompletionPublishesUtilization(t *testing.T) {
	svc, _, log := newServiceFixture(t)
	ctx := context.Background()
	created := createProgram(t, svc, 10000)

	active, completed := "ACTIVE", "COMPLETED"
	_, err := svc.Update(ctx, created.ID, UpdateProgramRequest{Status: &active}, uuid.New())
	require.NoError(t, err)
	_, err = svc.RecordExpenditure(ctx, created.ID, RecordExpenditureRequest{Amount: decimal.NewFromInt(2500)}, uuid.New())
	require.NoError(t, err)

	resp, err := svc.Update(ctx, created.ID, UpdateProgramRequest{Status: &completed}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.NotNil(t, resp.CompletedAt)

	assert.Equal(t, []shared.EventType{
		shared.EventTypeProgramCreated,
		shared.EventTypeProgramUpdated,
		shared.EventTypeProgramUpdated,
		shared.EventTypeProgramUpdated,
		shared.EventTypeProgramCompleted,
	}, log.types())
	payload := log.events[4].Payload().(shared.ProgramCompletedPayload)
	assert.True(t, payload.Utilization.Percent.Equal(decimal.NewFromInt(25)))
	assert.True(t, payload.Utilization.Remaining.Equal(decimal.NewFromInt(7500)))
}

func TestProgramService_Update_Rejections(t *testing.T) {
	svc, _, log := newServiceFixture(t)
	ctx := context.Background()
	created := createProgram(t, svc, 100)
	log.events = nil

	completed := "COMPLETED"
	_, err := svc.Update(ctx, created.ID, UpdateProgramRequest{Status: &completed}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	_, err = svc.Update(ctx, uuid.New(), UpdateProgramRequest{}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, log.events)
}

func TestProgramService_RecordExpenditure(t *testing.T) {
	svc, repo, log := newServiceFixture(t)
	ctx := context.Background()
	created := createProgram(t, svc, 1000)
	log.events = nil

	resp, err := svc.RecordExpenditure(ctx, created.ID, RecordExpenditureRequest{Amount: decimal.RequireFromString("120.50")}, uuid.New())
	require.NoError(t, err)
	assert.True(t, resp.SpentAmount.Equal(decimal.RequireFromString("120.50")))
	assert.Equal(t, []shared.EventType{shared.EventTypeProgramUpdated}, log.types())
	assert.Equal(t, []string{"spent_amount"}, log.events[0].Payload().(shared.ProgramUpdatedPayload).ChangedFields)

	_, err = svc.RecordExpenditure(ctx, created.ID, RecordExpenditureRequest{Amount: decimal.NewFromInt(5), Currency: "EUR"}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
	_, err = svc.RecordExpenditure(ctx, created.ID, RecordExpenditureRequest{Amount: decimal.Zero}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	stored := repo.get(created.ID)
	assert.True(t, stored.SpentAmount.Amount().Equal(decimal.RequireFromString("120.50")))
	assert.Equal(t, program.StatusPlanned, stored.Status)
}
