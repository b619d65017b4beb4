package cache

import (
	"context"
	"fmt"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore picks the store from configuration. With Redis enabled
// it connects and, if that fails and cfg.Idempotency.AllowInMemoryFallback is
// set, degrades to the in-memory store with a warning.
func NewIdempotencyStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if !cfg.Redis.Enabled {
		logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(WithCleanupInterval(cfg.Idempotency.CleanupInterval)), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, RedisOptions{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Idempotency.KeyPrefix,
	})
	if err == nil {
		logger.Info("using Redis idempotency store",
			zap.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
		return store, nil
	}

	if !cfg.Idempotency.AllowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"redelivered events may be applied twice across instances",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(WithCleanupInterval(cfg.Idempotency.CleanupInterval)), nil
}
