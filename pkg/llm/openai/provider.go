// Package openai 提供 OpenAI 及兼容 API 的供应商实现。
//
// 基本用法：
//
//	import _ "github.com/kart-io/verbatim-rag/pkg/llm/openai"
//
//	provider, err := llm.NewProvider("openai", map[string]any{
//	    "api_key":    "your-api-key",
//	    "chat_model": "gpt-4o-mini",
//	})
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// ProviderName 是 OpenAI 供应商的名称标识符。
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可指向兼容服务（LocalAI、vLLM 等）。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api_key"`

	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string `json:"chat_model" mapstructure:"chat_model"`

	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1/",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 2,
	}
}

// Provider 基于官方 SDK 调用 Embeddings 与 Chat Completions。
type Provider struct {
	config *Config
	client openai.Client
}

func (c *Config) apply(m map[string]any) {
	for key, dst := range map[string]*string{
		"base_url":     &c.BaseURL,
		"api_key":      &c.APIKey,
		"embed_model":  &c.EmbedModel,
		"chat_model":   &c.ChatModel,
		"organization": &c.Organization,
	} {
		if v, ok := m[key].(string); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := m["timeout"].(time.Duration); ok && v > 0 {
		c.Timeout = v
	}
	if v, ok := m["max_retries"].(int); ok && v >= 0 {
		c.MaxRetries = v
	}
}

// NewProvider 是注册到 llm 包的工厂函数，api_key 必填。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.apply(configMap)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}

	return &Provider{
		config: cfg,
		client: openai.NewClient(opts...),
	}
}

func (p *Provider) Name() string { return ProviderName }

// Embed 为多个文本生成向量嵌入，结果按输入顺序返回。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.config.EmbedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// 服务端可能乱序返回，按 Index 归位。
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai: unexpected embedding index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, fmt.Errorf("openai: empty embedding")
	}
	return vecs[0], nil
}

// Generate 通过 Chat Completions 接口对单个提示词进行补全。
// 停止序列随请求发送，并在客户端再截断一次，兼容忽略 stop 参数的服务。
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.config.ChatModel),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if stop := requestStop(opts.Stop); len(stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stop}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}

	return truncateAtStop(resp.Choices[0].Message.Content, opts.Stop), nil
}

// maxStopSequences Chat Completions 接口允许的停止序列上限。
const maxStopSequences = 4

// requestStop 过滤空串并截取接口允许的前几个停止序列。
func requestStop(stop []string) []string {
	out := make([]string, 0, min(len(stop), maxStopSequences))
	for _, s := range stop {
		if s == "" {
			continue
		}
		if len(out) == maxStopSequences {
			break
		}
		out = append(out, s)
	}
	return out
}

// truncateAtStop 在最早出现的停止序列处截断文本。
func truncateAtStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}
