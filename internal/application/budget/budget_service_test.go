package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/casehub/backend/internal/domain/budget"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	infraevent "github.com/casehub/backend/internal/infrastructure/event"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockBudgetRepository is a mock implementation of budget.Repository
type MockBudgetRepository struct {
	mock.Mock
}

func (m *MockBudgetRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Budget, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.Budget), args.Error(1)
}

func (m *MockBudgetRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockBudgetRepository) Create(ctx context.Context, b *budget.Budget) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBudgetRepository) Update(ctx context.Context, b *budget.Budget) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBudgetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

type capturedEvents struct {
	events []shared.DomainEvent
}

func captureAll(bus shared.EventSubscriber) *capturedEvents {
	c := &capturedEvents{}
	bus.Subscribe(shared.WildcardTopic, shared.EventHandlerFunc(func(ctx context.Context, event shared.DomainEvent) error {
		c.events = append(c.events, event)
		return nil
	}))
	return c
}

func newTestService(t *testing.T) (*BudgetService, *MockBudgetRepository, *capturedEvents) {
	t.Helper()
	repo := new(MockBudgetRepository)
	bus := infraevent.NewInMemoryEventBus(zap.NewNop())
	captured := captureAll(bus)
	return NewBudgetService(repo, bus, zap.NewNop()), repo, captured
}

func existingBudget(t *testing.T, amount int64, projects, programs []uuid.UUID) *budget.Budget {
	t.Helper()
	total, err := valueobject.NewMoneyFromInt(amount, valueobject.USD)
	require.NoError(t, err)
	b, err := budget.NewBudget("FY26-OPS", "Operations", total, projects, programs, uuid.New())
	require.NoError(t, err)
	b.ClearDomainEvents()
	return b
}

func TestBudgetService_Create(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	programID := uuid.New()

	repo.On("ExistsByCode", mock.Anything, "FY26-OPS").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*budget.Budget")).Return(nil)

	resp, err := svc.Create(ctx, CreateBudgetRequest{
		Code:        "FY26-OPS",
		Name:        "Operations",
		TotalAmount: decimal.NewFromInt(100000),
		ProgramIDs:  []uuid.UUID{programID},
	}, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, "ACTIVE", resp.Status)
	require.Len(t, captured.events, 1)
	action, _ := captured.events[0].MetadataValue(shared.MetadataAction)
	assert.Equal(t, "create", action)
	payload := captured.events[0].Payload().(shared.BudgetChangedPayload)
	assert.True(t, payload.PreviousAmount.IsZero())
	assert.True(t, payload.NewAmount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, []uuid.UUID{programID}, payload.AffectedProgramIDs)
}

func TestBudgetService_Create_DuplicateCode(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	repo.On("ExistsByCode", mock.Anything, "FY26-OPS").Return(true, nil)

	_, err := svc.Create(ctx, CreateBudgetRequest{Code: "FY26-OPS", Name: "Operations", TotalAmount: decimal.NewFromInt(1)}, uuid.New())

	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	assert.Empty(t, captured.events)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBudgetService_Create_UnknownCurrency(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateBudgetRequest{Code: "X", Name: "X", Currency: "ZZZ"}, uuid.New())

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestBudgetService_Update_AmountChangePublishesOneEvent(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	projects := []uuid.UUID{uuid.New()}
	programs := []uuid.UUID{uuid.New(), uuid.New()}
	b := existingBudget(t, 500000, projects, programs)
	actor := uuid.New()

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Update", mock.Anything, b).Return(nil)

	newTotal := decimal.NewFromInt(450000)
	resp, err := svc.Update(ctx, b.ID, UpdateBudgetRequest{TotalAmount: &newTotal, Reason: "mid-year cut"}, actor)
	require.NoError(t, err)
	assert.True(t, resp.TotalAmount.Equal(newTotal))
	assert.Equal(t, 2, resp.Version)

	require.Len(t, captured.events, 1)
	evt := captured.events[0]
	assert.Equal(t, shared.EventTypeBudgetChanged, evt.Type())
	assert.Equal(t, budget.EventSource, evt.Source())
	assert.Equal(t, b.ID, evt.AggregateID())
	assert.Equal(t, map[string]string{
		shared.MetadataAction:  "update",
		shared.MetadataActorID: actor.String(),
	}, evt.Metadata())

	want := shared.BudgetChangedPayload{
		BudgetID:           b.ID,
		Currency:           "USD",
		PreviousAmount:     decimal.NewFromInt(500000),
		NewAmount:          decimal.NewFromInt(450000),
		Reason:             "mid-year cut",
		AffectedProjectIDs: projects,
		AffectedProgramIDs: programs,
	}
	if diff := cmp.Diff(want, evt.Payload(), decimalEqual); diff != "" {
		t.Errorf("budget-changed payload mismatch (-want +got):\n%s", diff)
	}
}

func TestBudgetService_Update_NameOnlyPublishesNothing(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 1000, nil, nil)

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Update", mock.Anything, b).Return(nil)

	name := "Renamed"
	resp, err := svc.Update(ctx, b.ID, UpdateBudgetRequest{Name: &name}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Name)
	assert.Empty(t, captured.events)
}

func TestBudgetService_Update_NoChangeSkipsWrite(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 1000, nil, nil)
	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)

	same := decimal.NewFromInt(1000)
	_, err := svc.Update(ctx, b.ID, UpdateBudgetRequest{TotalAmount: &same}, uuid.New())
	require.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Empty(t, captured.events)
}

func TestBudgetService_Update_WriteFailurePublishesNothing(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 500000, nil, nil)

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Update", mock.Anything, b).Return(shared.ErrConcurrentModification)

	newTotal := decimal.NewFromInt(1)
	_, err := svc.Update(ctx, b.ID, UpdateBudgetRequest{TotalAmount: &newTotal}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.Empty(t, captured.events)
}

func TestBudgetService_Update_NotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, shared.NewNotFoundError("budget", id.String()))

	_, err := svc.Update(ctx, id, UpdateBudgetRequest{}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBudgetService_Close(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 2500, nil, []uuid.UUID{uuid.New()})

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Update", mock.Anything, b).Return(nil)

	resp, err := svc.Close(ctx, b.ID, CloseBudgetRequest{Reason: "fiscal year end"}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", resp.Status)

	require.Len(t, captured.events, 1)
	action, _ := captured.events[0].MetadataValue(shared.MetadataAction)
	assert.Equal(t, "close", action)
	payload := captured.events[0].Payload().(shared.BudgetChangedPayload)
	assert.True(t, payload.NewAmount.IsZero())
	assert.True(t, payload.PreviousAmount.Equal(decimal.NewFromInt(2500)))

	// closed budgets reject further edits
	newTotal := decimal.NewFromInt(1)
	_, err = svc.Update(ctx, b.ID, UpdateBudgetRequest{TotalAmount: &newTotal}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestBudgetService_Delete(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 900, nil, nil)

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Delete", mock.Anything, b.ID).Return(nil)

	require.NoError(t, svc.Delete(ctx, b.ID, DeleteBudgetRequest{}, uuid.New()))
	require.Len(t, captured.events, 1)
	action, _ := captured.events[0].MetadataValue(shared.MetadataAction)
	assert.Equal(t, "delete", action)
	assert.Equal(t, "budget deleted", captured.events[0].Payload().(shared.BudgetChangedPayload).Reason)
}

func TestBudgetService_Delete_FailurePublishesNothing(t *testing.T) {
	svc, repo, captured := newTestService(t)
	ctx := context.Background()
	b := existingBudget(t, 900, nil, nil)

	repo.On("FindByID", mock.Anything, b.ID).Return(b, nil)
	repo.On("Delete", mock.Anything, b.ID).Return(errors.New("foreign key violation"))

	assert.Error(t, svc.Delete(ctx, b.ID, DeleteBudgetRequest{Reason: "duplicate"}, uuid.New()))
	assert.Empty(t, captured.events)
}
