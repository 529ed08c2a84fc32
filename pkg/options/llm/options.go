// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/kart-io/verbatim-rag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 供应商内部的最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Resilience 重试与熔断配置。
	Resilience *ResilienceOptions `json:"resilience" mapstructure:"resilience"`
}

// ResilienceOptions 定义供应商调用的重试与熔断配置。
type ResilienceOptions struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	MaxAttempts  int           `json:"max-attempts" mapstructure:"max-attempts"`
	InitialDelay time.Duration `json:"initial-delay" mapstructure:"initial-delay"`
	MaxDelay     time.Duration `json:"max-delay" mapstructure:"max-delay"`
	MaxFailures  int           `json:"max-failures" mapstructure:"max-failures"`
	OpenTimeout  time.Duration `json:"open-timeout" mapstructure:"open-timeout"`
}

// NewResilienceOptions 创建默认韧性配置。
func NewResilienceOptions() *ResilienceOptions {
	return &ResilienceOptions{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		MaxFailures:  5,
		OpenTimeout:  60 * time.Second,
	}
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 1,
		Resilience: NewResilienceOptions(),
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "nomic-embed-text"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "tinyllama"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// Callers pass "embedding" or "chat" as the prefix.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries performed by the provider client itself.")

	if o.Resilience == nil {
		o.Resilience = NewResilienceOptions()
	}
	fs.BoolVar(&o.Resilience.Enabled, p+"resilience.enabled", o.Resilience.Enabled, "Wrap the provider with retry and circuit breaker.")
	fs.IntVar(&o.Resilience.MaxAttempts, p+"resilience.max-attempts", o.Resilience.MaxAttempts, "Maximum attempts per call, including the first one.")
	fs.DurationVar(&o.Resilience.InitialDelay, p+"resilience.initial-delay", o.Resilience.InitialDelay, "Initial retry backoff.")
	fs.DurationVar(&o.Resilience.MaxDelay, p+"resilience.max-delay", o.Resilience.MaxDelay, "Maximum retry backoff.")
	fs.IntVar(&o.Resilience.MaxFailures, p+"resilience.max-failures", o.Resilience.MaxFailures, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.Resilience.OpenTimeout, p+"resilience.open-timeout", o.Resilience.OpenTimeout, "How long the circuit breaker stays open.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "ollama", "openai":
	case "":
		errs = append(errs, fmt.Errorf("provider is required"))
	default:
		errs = append(errs, fmt.Errorf("unsupported provider %q", o.Provider))
	}
	if o.Provider == "ollama" && o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required for ollama provider"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Resilience != nil && o.Resilience.Enabled && o.Resilience.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("resilience.max-attempts must be positive"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	// 未显式配置地址时 openai 使用官方端点
	if o.Provider == "openai" && o.BaseURL == "http://localhost:11434" {
		o.BaseURL = ""
	}
	if o.Resilience == nil {
		o.Resilience = NewResilienceOptions()
	}
	return nil
}
