package weather

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aethra/krishi/internal/cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CachedClient serves repeated requests for nearby locations from a cache.
// Locations are rounded to two decimals (about 1 km).
type CachedClient struct {
	next  Client
	store cache.Store
	ttl   func() time.Duration
	log   *zap.Logger
}

// NewCachedClient wraps next; ttl is read on every store so that a changed
// setting applies without restart
func NewCachedClient(next Client, store cache.Store, ttl func() time.Duration, log *zap.Logger) *CachedClient {
	return &CachedClient{next: next, store: store, ttl: ttl, log: log.Named("weather_cache")}
}

// CacheKey returns the cache key of a location
func CacheKey(lat, lon decimal.Decimal) string {
	return "weather:" + lat.Round(2).StringFixed(2) + ":" + lon.Round(2).StringFixed(2)
}

func (c *CachedClient) Forecast(ctx context.Context, lat, lon decimal.Decimal) (*Report, error) {
	key := CacheKey(lat, lon)

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var report Report
		if err := json.Unmarshal([]byte(raw), &report); err == nil {
			return &report, nil
		}
	}

	report, err := c.next.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if ttl := c.ttl(); ttl > 0 {
		if raw, err := json.Marshal(report); err == nil {
			if err := c.store.Set(ctx, key, string(raw), ttl); err != nil {
				c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return report, nil
}
