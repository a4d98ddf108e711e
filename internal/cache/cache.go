// Package cache stores pipeline reports by their content key so repeated
// verification requests on the same raster and options skip the pipeline.
//
// Two stores are provided: an in-process map (the default) and Redis, chosen
// by whether a Redis address is configured. Cached reports are JSON encoded
// and so come back without the rendered region mask.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/contour-mcp/internal/config"
	"github.com/ironsheep/contour-mcp/internal/pipeline"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// Store is a report cache keyed by pipeline.Key.
type Store interface {
	// Get returns the cached report and true, or nil and false on a miss.
	Get(ctx context.Context, key string) (*pipeline.Report, bool, error)
	Set(ctx context.Context, key string, report *pipeline.Report) error
	Close() error
}

// New returns a Redis store when cfg names a Redis address and a memory store
// otherwise.
func New(cfg config.CacheConfig) Store {
	if cfg.Redis.Addr != "" {
		return NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, WithTTL(cfg.TTL))
	}
	return NewMemory(cfg.TTL)
}

// Run returns the cached report for (src, opts) or runs the pipeline and
// caches the result. The bool reports a cache hit. Cache failures are logged
// and never fail the run; pipeline errors are not cached.
func Run(ctx context.Context, store Store, p *pipeline.Pipeline, logger *zap.Logger,
	src *raster.Raster, opts pipeline.Options) (*pipeline.Report, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := pipeline.Key(src, opts)

	report, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		logger.Debug("report cache hit", zap.String("key", key))
		return report, true, nil
	}

	report, err = p.Run(src, opts)
	if err != nil {
		return nil, false, err
	}
	if err := store.Set(ctx, key, report); err != nil {
		logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return report, false, nil
}

// expired reports whether an entry stored at t with ttl has lapsed at now.
// A zero ttl never expires.
func expired(t time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(t) >= ttl
}
