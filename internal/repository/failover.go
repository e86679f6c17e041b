package repository

import (
	"context"
	"sync/atomic"
	"time"

	"simpkl/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverCache fronts a primary (redis) cache with an in-memory
// fallback. After a primary failure it serves from the fallback and
// probes the primary again a minute later.
type FailoverCache struct {
	primary  domain.Cache
	fallback domain.Cache
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// lastCheck holds the unix nanos of the last failed primary attempt;
	// read and written from concurrent requests.
	lastCheck atomic.Int64
}

func NewFailoverCache(primary, fallback domain.Cache, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}

func (c *FailoverCache) GetBlockedDates(ctx context.Context, group string) ([]string, bool, error) {
	if !c.isDown.Load() {
		dates, hit, err := c.primary.GetBlockedDates(ctx, group)
		if err == nil {
			return dates, hit, nil
		}
		c.markDown(err)
	}

	// Probe the primary again after a minute.
	if c.isDown.Load() && time.Since(time.Unix(0, c.lastCheck.Load())) > time.Minute {
		dates, hit, err := c.primary.GetBlockedDates(ctx, group)
		if err == nil {
			c.isDown.Store(false)
			return dates, hit, nil
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.GetBlockedDates(ctx, group)
}

func (c *FailoverCache) SetBlockedDates(ctx context.Context, group string, dates []string, ttl time.Duration) error {
	if !c.isDown.Load() {
		err := c.primary.SetBlockedDates(ctx, group, dates, ttl)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}

	return c.fallback.SetBlockedDates(ctx, group, dates, ttl)
}

func (c *FailoverCache) InvalidateBlockedDates(ctx context.Context, group string) error {
	if !c.isDown.Load() {
		err := c.primary.InvalidateBlockedDates(ctx, group)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}

	return c.fallback.InvalidateBlockedDates(ctx, group)
}

func (c *FailoverCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !c.isDown.Load() {
		allowed, err := c.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		c.markDown(err)
	}

	return c.fallback.CheckRateLimit(ctx, key, limit, window)
}
