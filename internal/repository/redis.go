package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"simpkl/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps blocked-date sets and submission rate counters in
// redis so several API replicas share one view.
type RedisCache struct {
	client *redis.Client
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func blockedKey(group string) string {
	return fmt.Sprintf("blocked_dates:%s", group)
}

func (r *RedisCache) GetBlockedDates(ctx context.Context, group string) ([]string, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, blockedKey(group)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get blocked dates from redis: %w", err)
	}

	var dates []string
	if err := json.Unmarshal([]byte(val), &dates); err != nil {
		return nil, false, fmt.Errorf("unmarshal blocked dates: %w", err)
	}
	return dates, true, nil
}

func (r *RedisCache) SetBlockedDates(ctx context.Context, group string, dates []string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(dates)
	if err != nil {
		return fmt.Errorf("marshal blocked dates: %w", err)
	}
	if err := r.client.Set(ctx, blockedKey(group), data, ttl).Err(); err != nil {
		return fmt.Errorf("set blocked dates in redis: %w", err)
	}
	return nil
}

func (r *RedisCache) InvalidateBlockedDates(ctx context.Context, group string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, blockedKey(group)).Err(); err != nil {
		return fmt.Errorf("delete blocked dates from redis: %w", err)
	}
	return nil
}

func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
