package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ledgerapp "github.com/casehub/backend/internal/application/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type countingRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{ran: make(chan struct{}, 16)}
}

func (r *countingRunner) SweepOverdue(_ context.Context, now time.Time) (ledgerapp.SweepResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, now)
	r.mu.Unlock()
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return ledgerapp.SweepResult{Checked: 2, Marked: 1, Skipped: 1}, r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitRun(t *testing.T, r *countingRunner) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestOverdueSweeper_RunsOnStartAndOnTick(t *testing.T) {
	runner := newCountingRunner()
	s := NewOverdueSweeper(runner, zaptest.NewLogger(t), OverdueSweeperConfig{
		Enabled:    true,
		Interval:   20 * time.Millisecond,
		RunOnStart: true,
	})
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	waitRun(t, runner)
	waitRun(t, runner)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	stopped := runner.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, runner.count())
	assert.Equal(t, fixed, runner.calls[0])
}

func TestOverdueSweeper_Disabled(t *testing.T) {
	runner := newCountingRunner()
	s := NewOverdueSweeper(runner, zap.NewNop(), OverdueSweeperConfig{Enabled: false})
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())

	_, err := s.TriggerNow(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	assert.Zero(t, runner.count())
	require.NoError(t, s.Stop(context.Background()))
}

func TestOverdueSweeper_TriggerNowLogsFailure(t *testing.T) {
	runner := newCountingRunner()
	runner.err = errors.New("db down")
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewOverdueSweeper(runner, zap.New(core), OverdueSweeperConfig{Enabled: true, Interval: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	result, err := s.TriggerNow(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 1, result.Marked)
	assert.Equal(t, 1, logs.FilterMessage("Overdue sweep failed").Len())
}
