// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/kart-io/verbatim-rag/pkg/options"
	redisopts "github.com/kart-io/verbatim-rag/pkg/options/redis"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options 查询缓存与向量缓存配置。
type Options struct {
	// Enabled 是否启用答案缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 答案缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 答案缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Embedding 是否缓存向量化结果。
	Embedding bool `json:"embedding" mapstructure:"embedding"`

	// EmbeddingTTL 向量缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// EmbeddingReset 启动时清空全部向量缓存。
	EmbeddingReset bool `json:"embedding-reset" mapstructure:"embedding-reset"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置（默认关闭）。
func NewOptions() *Options {
	return &Options{
		Enabled:      false,
		TTL:          1 * time.Hour,
		KeyPrefix:    "rag:answer:",
		Embedding:    false,
		EmbeddingTTL: 24 * time.Hour,
		Redis:        redisopts.NewOptions(),
	}
}

// Active reports whether any cache needs a Redis connection.
func (o *Options) Active() bool {
	return o != nil && (o.Enabled || o.Embedding)
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"cache.enabled", o.Enabled, "Enable the answer cache.")
	fs.DurationVar(&o.TTL, p+"cache.ttl", o.TTL, "Answer cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"cache.key-prefix", o.KeyPrefix, "Answer cache key prefix.")
	fs.BoolVar(&o.Embedding, p+"cache.embedding", o.Embedding, "Cache embedding vectors in Redis.")
	fs.DurationVar(&o.EmbeddingTTL, p+"cache.embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")
	fs.BoolVar(&o.EmbeddingReset, p+"cache.embedding-reset", o.EmbeddingReset,
		"Delete every cached embedding at startup, including entries left by previously configured models.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(append([]string{}, prefixes...), "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Enabled && o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive"))
	}
	if o.Active() && o.Redis != nil {
		errs = append(errs, o.Redis.Validate()...)
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
