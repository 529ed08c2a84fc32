package biz

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
)

// QueryCacheConfig 答案缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCacheStats 答案缓存统计。
type QueryCacheStats struct {
	Enabled   bool   `json:"enabled"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeyCount  int    `json:"key_count"`
	TTL       string `json:"ttl,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// QueryCache 以问题的 SHA-256 为键缓存答案字符串。
// 缓存读写失败只记录日志，不影响查询。
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewQueryCache 创建答案缓存实例。redis 为空时缓存不生效。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "rag:answer:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rag:answer:"
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// Enabled 返回缓存是否生效。
func (c *QueryCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

func (c *QueryCache) key(question string) string {
	return c.config.KeyPrefix + textutil.HashString(question)
}

// Get 读取缓存的答案。未命中或缓存不可用时 ok 为 false。
func (c *QueryCache) Get(ctx context.Context, question string) (answer string, ok bool) {
	if !c.Enabled() {
		return "", false
	}

	key := c.key(question)
	answer, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		c.misses.Add(1)
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("failed to get from answer cache", "key", key, "error", err.Error())
		}
		return "", false
	}

	c.hits.Add(1)
	logger.Debugw("answer cache hit", "key", key)
	return answer, true
}

// Set 写入答案。
func (c *QueryCache) Set(ctx context.Context, question, answer string) {
	if !c.Enabled() {
		return
	}

	key := c.key(question)
	if err := c.redis.Set(ctx, key, answer, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "key", key, "error", err.Error())
	}
}

// Clear 删除前缀下的全部答案，返回删除数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	logger.Infow("cleared answer cache", "deleted_count", deleted)
	return int(deleted), nil
}

// Stats 返回缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) *QueryCacheStats {
	if !c.Enabled() {
		return &QueryCacheStats{Enabled: false}
	}

	stats := &QueryCacheStats{
		Enabled:   true,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		TTL:       c.config.TTL.String(),
		KeyPrefix: c.config.KeyPrefix,
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.KeyCount++
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("failed to count answer cache keys", "error", err.Error())
	}
	return stats
}
