// Package llm 定义 Embedding 与文本生成供应商的统一接口及注册表。
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EmbeddingProvider 将文本转换为向量。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量，返回顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle 为单个文本生成向量。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Name 返回供应商名称。
	Name() string
}

// GenerateOptions 控制一次补全调用的采样参数。
type GenerateOptions struct {
	// Temperature 采样温度，抽取场景固定为 0。
	Temperature float64
	// MaxTokens 最大输出 token 数，0 表示由供应商决定。
	MaxTokens int
	// Stop 停止序列。
	Stop []string
	// System 可选的系统提示词。
	System string
}

// ChatProvider 根据提示词生成文本。
type ChatProvider interface {
	// Generate 对单个提示词进行补全。
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// Name 返回供应商名称。
	Name() string
}

// Provider 同时具备 Embedding 与生成能力的供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 根据配置 map 创建供应商。
type ProviderFactory func(config map[string]any) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderFactory)
)

// RegisterProvider 注册供应商工厂，通常在子包的 init 中调用。
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewProvider 根据名称创建供应商。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s (registered: %s)", name, strings.Join(ListProviders(), ", "))
	}
	return factory(config)
}

// NewEmbeddingProvider 创建 Embedding 供应商。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	return NewProvider(name, config)
}

// NewChatProvider 创建生成供应商。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	return NewProvider(name, config)
}

// ListProviders 返回已注册的供应商名称，按字母序排列。
func ListProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
