// Package ollama 通过 Ollama 的 REST 接口实现 Embedding 与生成。
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/verbatim-rag/pkg/llm"
)

const ProviderName = "ollama"

// 响应体截断长度，避免把整页 HTML 写进错误。
const maxErrorBody = 512

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 连接配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回本地 Ollama 的默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "tinyllama",
		Timeout:    120 * time.Second,
		MaxRetries: 1,
	}
}

func (c *Config) apply(m map[string]any) {
	setString := func(key string, dst *string) {
		if v, ok := m[key].(string); ok && v != "" {
			*dst = v
		}
	}
	setString("base_url", &c.BaseURL)
	setString("embed_model", &c.EmbedModel)
	setString("chat_model", &c.ChatModel)
	if v, ok := m["timeout"].(time.Duration); ok && v > 0 {
		c.Timeout = v
	}
	if v, ok := m["max_retries"].(int); ok && v >= 0 {
		c.MaxRetries = v
	}
}

// Provider 调用 Ollama 的 /api/embed 与 /api/generate。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// NewProvider 是注册到 llm 包的工厂函数。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.apply(configMap)
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return ProviderName }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 批量生成向量，一次请求提交全部文本。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	if err := p.call(ctx, "/api/embed", embedRequest{Model: p.config.EmbedModel, Input: texts}, &out); err != nil {
		return nil, err
	}
	if got := len(out.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(texts), got)
	}
	return out.Embeddings, nil
}

func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding")
	}
	return vecs[0], nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	System  string          `json:"system,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 以非流式方式补全提示词。
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:  p.config.ChatModel,
		Prompt: prompt,
		System: opts.System,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	}

	var out generateResponse
	if err := p.call(ctx, "/api/generate", req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Ping 通过 /api/tags 检查服务可用性。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// call 发送 JSON 请求。仅传输层错误在这里重试，HTTP 状态错误交给上层的重试策略。
func (p *Provider) call(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama: encode request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		resp, err = p.send(ctx, path, body)
		if err == nil || attempt >= p.config.MaxRetries {
			break
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("ollama: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode %s response: %w", path, err)
	}
	return nil
}

func (p *Provider) send(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.httpClient.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &llm.StatusError{
		Provider:   ProviderName,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(msg)),
	}
}
