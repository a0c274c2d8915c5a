package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/biomatch-server/internal/domain"
)

// RedisTier stores match results as JSON in Redis
type RedisTier struct {
	redis  *redis.Client
	prefix string
}

type cachedResult struct {
	Data      *domain.MatchResult `json:"data"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// NewRedisTier connects to config.RedisURL and pings it
func NewRedisTier(ctx context.Context, config domain.CacheConfig) (*RedisTier, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTierFromClient(client, config.KeyPrefix), nil
}

// NewRedisTierFromClient wraps an existing client
func NewRedisTierFromClient(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{redis: client, prefix: prefix}
}

func (t *RedisTier) key(id string) string {
	return t.prefix + "match:" + id
}

// SetResult writes result with ttl
func (t *RedisTier) SetResult(ctx context.Context, result *domain.MatchResult, ttl time.Duration) error {
	now := time.Now()
	payload, err := json.Marshal(cachedResult{Data: result, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}
	return t.redis.Set(ctx, t.key(result.ID), payload, ttl).Err()
}

func (t *RedisTier) indexKey(sampleID string) string {
	return t.prefix + "sample:" + sampleID + ":results"
}

// AppendSampleIndex appends ids to the sample's result list and refreshes its ttl
func (t *RedisTier) AppendSampleIndex(ctx context.Context, sampleID string, ids []string, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	key := t.indexKey(sampleID)
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append sample index: %w", err)
	}
	return nil
}

// SampleIndex returns the result ids recorded for a sample, oldest first
func (t *RedisTier) SampleIndex(ctx context.Context, sampleID string) ([]string, error) {
	ids, err := t.redis.LRange(ctx, t.indexKey(sampleID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sample index: %w", err)
	}
	return ids, nil
}

// GetResult reads a result; corrupted or expired entries are removed and reported as a miss
func (t *RedisTier) GetResult(ctx context.Context, id string) (*domain.MatchResult, bool, error) {
	key := t.key(id)

	val, err := t.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get match result: %w", err)
	}

	var cached cachedResult
	if err := json.Unmarshal(val, &cached); err != nil || cached.Data == nil {
		t.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		t.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Client exposes the underlying client so other components can share the pool
func (t *RedisTier) Client() *redis.Client {
	return t.redis
}

// Close closes the connection pool
func (t *RedisTier) Close() error {
	return t.redis.Close()
}
