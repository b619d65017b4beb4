// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	ledgerapp "github.com/casehub/backend/internal/application/ledger"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OverdueSweepRunner persists the Overdue status of invoices past due
type OverdueSweepRunner interface {
	SweepOverdue(ctx context.Context, now time.Time) (ledgerapp.SweepResult, error)
}

// OverdueSweeperConfig holds configuration for the overdue sweeper
type OverdueSweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	// Timeout bounds a single sweep
	Timeout time.Duration
	// RunOnStart sweeps once immediately instead of waiting a full interval
	RunOnStart bool
}

// DefaultOverdueSweeperConfig returns default configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Enabled:    true,
		Interval:   time.Hour,
		Timeout:    5 * time.Minute,
		RunOnStart: true,
	}
}

// OverdueSweeper periodically marks past-due invoices Overdue
type OverdueSweeper struct {
	runner    OverdueSweepRunner
	logger    *zap.Logger
	config    OverdueSweeperConfig
	now       func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	// serializes ticks with manual triggers
	sweepMu sync.Mutex
}

// NewOverdueSweeper creates a new overdue sweeper
func NewOverdueSweeper(runner OverdueSweepRunner, logger *zap.Logger, config OverdueSweeperConfig) *OverdueSweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &OverdueSweeper{
		runner: runner,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Start launches the sweep loop
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweeper is disabled")
		return nil
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("Overdue sweeper started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop cancels the loop and waits for a running sweep until ctx is done
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerNow runs one sweep synchronously
func (s *OverdueSweeper) TriggerNow(ctx context.Context) (ledgerapp.SweepResult, error) {
	if !s.IsRunning() {
		return ledgerapp.SweepResult{}, ErrSchedulerNotRunning
	}
	return s.sweep(ctx)
}

func (s *OverdueSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_, _ = s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Overdue sweep loop stopping")
			return
		case <-ticker.C:
			_, _ = s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) (result ledgerapp.SweepResult, err error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	telemetry.WithProfilingLabels(sweepCtx, map[string]string{"job": "overdue_sweep"}, func(c context.Context) {
		result, err = s.runner.SweepOverdue(c, s.now())
	})
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Overdue sweep failed",
			zap.Duration("duration", duration),
			zap.Int("marked", result.Marked),
			zap.Error(err),
		)
		return result, err
	}
	s.logger.Info("Overdue sweep completed",
		zap.Duration("duration", duration),
		zap.Int("checked", result.Checked),
		zap.Int("marked", result.Marked),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
