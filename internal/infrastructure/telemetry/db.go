package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/casehub/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartKey contextKey = "telemetry_query_start"

const defaultSlowQuery = 200 * time.Millisecond

// RegisterDBTracing installs the otelgorm plugin plus callbacks that mark
// slow and failed statements on the active span. Bound values are left
// out of spans unless DBLogFullSQL is set.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, driver string, logger *zap.Logger) error {
	if !cfg.Enabled || !cfg.DBTraceEnabled {
		return nil
	}

	dbSystem := "postgresql"
	if driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(dbSystem)}
	if !cfg.DBLogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm: %w", err)
	}

	threshold := cfg.DBSlowQueryThresh
	if threshold <= 0 {
		threshold = defaultSlowQuery
	}
	if err := registerSpanCallbacks(db, threshold); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", dbSystem),
		zap.Bool("log_full_sql", cfg.DBLogFullSQL),
		zap.Duration("slow_query_threshold", threshold),
	)
	return nil
}

func registerSpanCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, threshold) }

	cb := db.Callback()
	ops := []struct {
		name   string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create",
			func(n string, fn func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Create().After("gorm:create").Before("otel:after_create").Register(n, fn)
			}},
		{"query",
			func(n string, fn func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Query().After("gorm:query").Before("otel:after_query").Register(n, fn)
			}},
		{"update",
			func(n string, fn func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Update().After("gorm:update").Before("otel:after_update").Register(n, fn)
			}},
		{"delete",
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Delete().After("gorm:delete").Before("otel:after_delete").Register(n, fn)
			}},
		{"row",
			func(n string, fn func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Row().After("gorm:row").Before("otel:after_row").Register(n, fn)
			}},
		{"raw",
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error {
				return cb.Raw().After("gorm:raw").Before("otel:after_raw").Register(n, fn)
			}},
	}
	// the after hooks run before otelgorm ends its span
	for _, op := range ops {
		if err := op.before("telemetry:before_"+op.name, before); err != nil {
			return fmt.Errorf("failed to register %s timing callback: %w", op.name, err)
		}
		if err := op.after("telemetry:after_"+op.name, after); err != nil {
			return fmt.Errorf("failed to register %s span callback: %w", op.name, err)
		}
	}
	return nil
}

func annotateSpan(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
		span.SetStatus(codes.Error, tx.Error.Error())
	}
	if start, ok := ctx.Value(queryStartKey).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}

// RegisterPoolMetrics reports database/sql pool statistics as observable
// gauges on every collection
func RegisterPoolMetrics(meter metric.Meter, sqlDB *sql.DB) (metric.Registration, error) {
	open, err := meter.Int64ObservableGauge("casehub.db.connections.open",
		metric.WithDescription("Open database connections"))
	if err != nil {
		return nil, instrumentError("db.connections.open", err)
	}
	inUse, err := meter.Int64ObservableGauge("casehub.db.connections.in_use",
		metric.WithDescription("Database connections in use"))
	if err != nil {
		return nil, instrumentError("db.connections.in_use", err)
	}
	waitCount, err := meter.Int64ObservableCounter("casehub.db.connections.wait_count",
		metric.WithDescription("Total waits for a free connection"))
	if err != nil {
		return nil, instrumentError("db.connections.wait_count", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(waitCount, stats.WaitCount)
		return nil
	}, open, inUse, waitCount)
}

// ReceivableStats is the outstanding balance of payable invoices in one currency
type ReceivableStats struct {
	Currency    string
	Open        int64
	Outstanding decimal.Decimal
}

// ReceivableStatsProvider reads the current receivables snapshot
type ReceivableStatsProvider interface {
	ReceivableStats(ctx context.Context) ([]ReceivableStats, error)
}

// GormReceivableStatsProvider aggregates the invoices table
type GormReceivableStatsProvider struct {
	db *gorm.DB
}

// NewGormReceivableStatsProvider creates a provider over db
func NewGormReceivableStatsProvider(db *gorm.DB) *GormReceivableStatsProvider {
	return &GormReceivableStatsProvider{db: db}
}

// ReceivableStats groups approved, partially paid and overdue invoices
// with a balance by currency
func (p *GormReceivableStatsProvider) ReceivableStats(ctx context.Context) ([]ReceivableStats, error) {
	var rows []struct {
		Currency    string
		Open        int64
		Outstanding decimal.Decimal
	}
	err := p.db.WithContext(ctx).
		Table("invoices").
		Select("currency, COUNT(*) AS open, COALESCE(SUM(balance_due), 0) AS outstanding").
		Where("status IN ?", []string{"APPROVED", "PARTIALLY_PAID", "OVERDUE"}).
		Where("balance_due > 0").
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate receivables: %w", err)
	}
	stats := make([]ReceivableStats, len(rows))
	for i, r := range rows {
		stats[i] = ReceivableStats{Currency: r.Currency, Open: r.Open, Outstanding: r.Outstanding}
	}
	return stats, nil
}

// RegisterReceivableMetrics exposes open invoice counts and outstanding
// balances per currency as observable gauges
func RegisterReceivableMetrics(meter metric.Meter, provider ReceivableStatsProvider, logger *zap.Logger) (metric.Registration, error) {
	openGauge, err := meter.Int64ObservableGauge("casehub.ledger.open_invoices",
		metric.WithDescription("Payable invoices with a balance"), metric.WithUnit("{invoice}"))
	if err != nil {
		return nil, instrumentError("ledger.open_invoices", err)
	}
	balanceGauge, err := meter.Float64ObservableGauge("casehub.ledger.outstanding_balance",
		metric.WithDescription("Outstanding receivables in major currency units"))
	if err != nil {
		return nil, instrumentError("ledger.outstanding_balance", err)
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		stats, err := provider.ReceivableStats(ctx)
		if err != nil {
			// a failed scrape must not fail the whole collection
			logger.Warn("Failed to collect receivable metrics", zap.Error(err))
			return nil
		}
		for _, s := range stats {
			attrs := metric.WithAttributes(AttrCurrency.String(s.Currency))
			o.ObserveInt64(openGauge, s.Open, attrs)
			o.ObserveFloat64(balanceGauge, s.Outstanding.InexactFloat64(), attrs)
		}
		return nil
	}, openGauge, balanceGauge)
}
