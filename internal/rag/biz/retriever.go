package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
}

// RetrievalResult 表示一次查询的检索结果，按距离升序排列。
type RetrievalResult struct {
	Query   string
	Results []*store.QueryResult
}

// Texts 返回按顺序排列的分块文本。
func (r *RetrievalResult) Texts() []string {
	if r == nil {
		return nil
	}
	texts := make([]string, len(r.Results))
	for i, res := range r.Results {
		texts[i] = res.Text
	}
	return texts
}

// Blank 报告检索结果中是否没有任何非空白文本。
func (r *RetrievalResult) Blank() bool {
	for _, text := range r.Texts() {
		if strings.TrimSpace(text) != "" {
			return false
		}
	}
	return true
}

// Retriever 负责查询嵌入与最近邻检索。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil || config.TopK <= 0 {
		config = &RetrieverConfig{TopK: 3}
	}
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
	}
}

// Retrieve 检索与问题最相关的 topK 个分块，topK <= 0 时使用默认值。
// 索引为空时返回空结果而非错误；查询嵌入失败时返回 ErrEmbedding。
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = r.config.TopK
	}

	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrEmbedding.WithCause(err)
	}
	if len(vec) == 0 {
		return nil, ErrEmbedding.WithCause(fmt.Errorf("no embedding returned for query"))
	}

	results, err := r.store.Query(ctx, vec, topK)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrStore.WithCause(err)
	}

	logger.Debugw("retrieved chunks",
		"query", textutil.TruncateString(query, 80),
		"top_k", topK,
		"hits", len(results),
	)
	return &RetrievalResult{Query: query, Results: results}, nil
}
