package biz

import (
	"context"
	"errors"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// NotFound 上下文中不存在答案时返回的哨兵值。
const NotFound = "NOT_FOUND"

// contextSeparator 拼接检索分块的分隔符。
const contextSeparator = "\n\n---\n\n"

// DefaultExtractionPrompt 逐字抽取提示词模板，占位符为 {{context}} 与 {{question}}。
const DefaultExtractionPrompt = `You are an information extraction system.

Rules:
- Use ONLY the provided context.
- Return ONLY the extracted answer value.
- Copy the answer EXACTLY as it appears in the context (verbatim). Do not rephrase. Do not correct spelling.
- Do not add any extra words, labels, punctuation, or explanations.
- If the answer is not explicitly present in the context, return exactly: NOT_FOUND

Context:
{{context}}

Question: {{question}}

Extracted value:`

// DefaultStopSequences 防止模型继续续写提示词结构。
var DefaultStopSequences = []string{"\n\n", "\nRules:", "\nContext:", "\nQuestion:"}

// echoMarkers 输出中出现任一标记即视为复述了提示词。
var echoMarkers = []string{"rules:", "context:", "question:", "information extraction system"}

// ExtractorConfig 抽取器配置。
type ExtractorConfig struct {
	// PromptTemplate 提示词模板，为空时使用 DefaultExtractionPrompt。
	PromptTemplate string
	// MaxOutputTokens 最大输出 token 数。
	MaxOutputTokens int
}

// Extractor 调用生成模型从检索上下文中逐字抽取答案。
type Extractor struct {
	chat   llm.ChatProvider
	config *ExtractorConfig
}

// NewExtractor 创建抽取器实例。
func NewExtractor(chat llm.ChatProvider, config *ExtractorConfig) *Extractor {
	if config == nil {
		config = &ExtractorConfig{}
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = DefaultExtractionPrompt
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = 64
	}
	return &Extractor{chat: chat, config: config}
}

// BuildContext 以固定分隔符按顺序拼接检索文本。
func BuildContext(result *RetrievalResult) string {
	return strings.Join(result.Texts(), contextSeparator)
}

// BuildPrompt 将上下文与问题填入模板。
func (e *Extractor) BuildPrompt(contextText, question string) string {
	return strings.NewReplacer(
		"{{context}}", contextText,
		"{{question}}", question,
	).Replace(e.config.PromptTemplate)
}

// Extract 返回逐字答案或 NotFound。上下文为空时不调用模型。
// 模型调用失败返回 ErrGeneration，不会降级为 NotFound。
func (e *Extractor) Extract(ctx context.Context, query string, result *RetrievalResult) (string, error) {
	if result.Blank() {
		return NotFound, nil
	}
	contextText := BuildContext(result)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := e.chat.Generate(ctx, e.BuildPrompt(contextText, query), llm.GenerateOptions{
		Temperature: 0,
		MaxTokens:   e.config.MaxOutputTokens,
		Stop:        DefaultStopSequences,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", ErrGeneration.WithCause(err)
	}

	answer := Normalize(raw)
	if answer == NotFound {
		return NotFound, nil
	}
	if IsPromptEcho(answer) {
		logger.Warnw("model echoed prompt structure, returning NOT_FOUND", "output_length", len(raw))
		return NotFound, nil
	}
	return answer, nil
}

// Normalize 去除首尾空白，并剥离一层成对的双引号。空结果返回 NotFound。
func Normalize(raw string) string {
	answer := strings.TrimSpace(raw)
	if len(answer) >= 2 && strings.HasPrefix(answer, `"`) && strings.HasSuffix(answer, `"`) {
		answer = strings.TrimSpace(answer[1 : len(answer)-1])
	}
	if answer == "" {
		return NotFound
	}
	return answer
}

// IsPromptEcho 判断输出是否复述了提示词结构。
func IsPromptEcho(answer string) bool {
	lower := strings.ToLower(answer)
	for _, m := range echoMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
