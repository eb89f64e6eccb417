// Package cache provides a small key/value store with expiry, backed by
// redis or by process memory
package cache

import (
	"context"
	"time"

	"github.com/aethra/krishi/internal/config"
	"go.uber.org/zap"
)

// Store is a string key/value store with per-entry TTL
type Store interface {
	// Get returns the value and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New returns a redis store when an address is configured and an
// in-memory store otherwise
func New(cfg config.RedisConfig, log *zap.Logger) (Store, error) {
	if cfg.Addr == "" {
		log.Info("using in-memory cache")
		return NewMemory(), nil
	}
	store, err := NewRedis(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Info("using redis cache", zap.String("addr", cfg.Addr))
	return store, nil
}
