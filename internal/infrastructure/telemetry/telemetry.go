package telemetry

import (
	"context"
	"errors"

	"github.com/casehub/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Providers bundles the trace, metric and profiling pipelines started at
// boot. The log pipeline is created earlier, before the logger exists.
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Profiler *Profiler
	Metrics  *BusinessMetrics
}

// Setup starts every pipeline enabled in cfg. Disabled pipelines are
// no-ops, so callers never need to check.
func Setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Providers, error) {
	tp, err := NewTracerProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	metrics, err := NewBusinessMetrics(mp.Meter(MeterName))
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	profiler, err := NewProfiler(cfg.Profiling, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	return &Providers{Tracer: tp, Meter: mp, Profiler: profiler, Metrics: metrics}, nil
}

// Shutdown stops the pipelines in reverse start order
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Profiler.Stop(),
		p.Meter.Shutdown(ctx),
		p.Tracer.Shutdown(ctx),
	)
}
