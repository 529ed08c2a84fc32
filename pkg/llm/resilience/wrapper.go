package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"

	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// EmbeddingProvider 带重试与熔断的 Embedding 供应商。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

// WrapEmbedding 包装 Embedding 供应商。
func WrapEmbedding(provider llm.EmbeddingProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *EmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &EmbeddingProvider{
		provider: provider,
		retry:    retry,
		cb:       NewCircuitBreaker(provider.Name()+"/embed", cbConfig),
	}
}

func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.Embed(ctx, texts)
		return err
	})
	return result, err
}

func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return result, err
}

func (r *EmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 返回熔断器实例，供统计接口使用。
func (r *EmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// ChatProvider 带重试与熔断的生成供应商。
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.ChatProvider = (*ChatProvider)(nil)

// WrapChat 包装生成供应商。
func WrapChat(provider llm.ChatProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *ChatProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &ChatProvider{
		provider: provider,
		retry:    retry,
		cb:       NewCircuitBreaker(provider.Name()+"/generate", cbConfig),
	}
}

func (r *ChatProvider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	var result string
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.Generate(ctx, prompt, opts)
		return err
	})
	return result, err
}

func (r *ChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 返回熔断器实例，供统计接口使用。
func (r *ChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// BreakerOf 返回供应商的熔断器快照，会穿过缓存等外层包装，未包装时返回 nil。
func BreakerOf(provider any) *BreakerStats {
	type breaker interface{ CircuitBreaker() *CircuitBreaker }
	type unwrapper interface{ Unwrap() llm.EmbeddingProvider }
	for provider != nil {
		if b, ok := provider.(breaker); ok {
			s := b.CircuitBreaker().Stats()
			return &s
		}
		u, ok := provider.(unwrapper)
		if !ok {
			return nil
		}
		provider = u.Unwrap()
	}
	return nil
}

// IsRetryableError 判断错误是否可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.StatusCode)
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, code := range []string{"status code 5", "status code 429", "status code 408"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "EOF") || strings.Contains(msg, "connection reset")
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}
