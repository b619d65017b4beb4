package event

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOutboxRepoForService is an in-memory OutboxRepository for OutboxService tests
type mockOutboxRepoForService struct {
	entries   map[uuid.UUID]*shared.OutboxEntry
	updateErr error
}

func newMockOutboxRepoForService() *mockOutboxRepoForService {
	return &mockOutboxRepoForService{
		entries: make(map[uuid.UUID]*shared.OutboxEntry),
	}
}

func (r *mockOutboxRepoForService) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *mockOutboxRepoForService) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *mockOutboxRepoForService) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *mockOutboxRepoForService) ClaimForProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *mockOutboxRepoForService) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.NewNotFoundError("outbox entry", id.String())
}

func (r *mockOutboxRepoForService) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	start := min((page-1)*pageSize, len(result))
	end := min(start+pageSize, len(result))
	return result[start:end], int64(len(result)), nil
}

func (r *mockOutboxRepoForService) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *mockOutboxRepoForService) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *mockOutboxRepoForService) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *mockOutboxRepoForService) add(status shared.OutboxStatus) *shared.OutboxEntry {
	entry := &shared.OutboxEntry{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		EventType:   shared.EventTypeCaseCreated,
		AggregateID: uuid.New(),
		Source:      "case-service",
		Status:      status,
		RetryCount:  5,
		MaxRetries:  5,
		LastError:   "subscriber unavailable",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.entries[entry.ID] = entry
	return entry
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())

	for range 5 {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusPending)

	result, err := service.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 3, result.TotalPages)

	for _, entry := range result.Entries {
		assert.Equal(t, "DEAD", entry.Status)
		assert.Equal(t, "case-created", entry.EventType)
		assert.Equal(t, "case-service", entry.Source)
	}
}

func TestOutboxService_GetDeadLetterEntries_DefaultsPaging(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())

	result, err := service.GetDeadLetterEntries(context.Background(), OutboxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 20, result.PageSize)
	assert.Zero(t, result.TotalPages)
	assert.Empty(t, result.Entries)
}

func TestOutboxService_GetEntry(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())
	entry := repo.add(shared.OutboxStatusSent)

	dto, err := service.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, dto.EventID)

	_, err = service.GetEntry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())
	dead := repo.add(shared.OutboxStatusDead)

	result, err := service.RetryDeadEntry(context.Background(), dead.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", result.Status)
	assert.Equal(t, 0, result.RetryCount)
	assert.Empty(t, result.LastError)
	assert.Equal(t, shared.OutboxStatusPending, repo.entries[dead.ID].Status)
}

func TestOutboxService_RetryDeadEntry_NotFound(t *testing.T) {
	service := NewOutboxService(newMockOutboxRepoForService(), zap.NewNop())

	_, err := service.RetryDeadEntry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxService_RetryDeadEntry_NotDead(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())
	entry := repo.add(shared.OutboxStatusPending)

	_, err := service.RetryDeadEntry(context.Background(), entry.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestOutboxService_RetryDeadEntry_UpdateFails(t *testing.T) {
	repo := newMockOutboxRepoForService()
	repo.updateErr = errors.New("connection reset")
	service := NewOutboxService(repo, zap.NewNop())
	dead := repo.add(shared.OutboxStatusDead)

	_, err := service.RetryDeadEntry(context.Background(), dead.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())

	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(status)
	}

	stats, err := service.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)
	assert.Equal(t, int64(3), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(8), stats.Total)
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newMockOutboxRepoForService()
	service := NewOutboxService(repo, zap.NewNop())

	for range retryAllBatchSize + 3 {
		repo.add(shared.OutboxStatusDead)
	}
	pending := repo.add(shared.OutboxStatusPending)

	count, err := service.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(retryAllBatchSize+3), count)

	for _, entry := range repo.entries {
		assert.Equal(t, shared.OutboxStatusPending, entry.Status)
		if entry.ID != pending.ID {
			assert.Zero(t, entry.RetryCount)
		}
	}
}

func TestOutboxService_RetryAllDeadEntries_StopsWhenNothingResets(t *testing.T) {
	repo := newMockOutboxRepoForService()
	repo.updateErr = errors.New("read-only replica")
	service := NewOutboxService(repo, zap.NewNop())
	repo.add(shared.OutboxStatusDead)

	count, err := service.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
