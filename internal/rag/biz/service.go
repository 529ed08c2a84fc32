package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/infra/pool"
	"github.com/kart-io/verbatim-rag/pkg/infra/tracing"
	"github.com/kart-io/verbatim-rag/pkg/llm/resilience"
)

// Service 定义 RAG 服务接口。
type Service interface {
	// Query 检索并抽取答案，debug 为 true 时附带调试信息。
	Query(ctx context.Context, question string, debug bool) (*QueryResponse, error)
	// Reindex 从配置的源文档重建索引，返回分块数。
	Reindex(ctx context.Context) (int, error)
	// Stats 返回知识库与运行统计。
	Stats(ctx context.Context) (*Stats, error)
}

// CollaboratorInfo 描述查询链路上的外部协作者配置，用于调试输出。
type CollaboratorInfo struct {
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	ChatProvider      string `json:"chat_provider"`
	ChatModel         string `json:"chat_model"`
	StoreBackend      string `json:"store_backend"`
	Collection        string `json:"collection"`
	TopK              int    `json:"top_k"`
	MaxOutputTokens   int    `json:"max_output_tokens"`
}

// DebugResults 原始检索结果，各字段按距离升序一一对应。
type DebugResults struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	Distances []float64        `json:"distances"`
}

// DebugInfo 查询调试信息。
type DebugInfo struct {
	Config  *CollaboratorInfo `json:"config"`
	Results *DebugResults     `json:"results"`
}

// QueryResponse 查询结果。
type QueryResponse struct {
	Answer string     `json:"answer"`
	Debug  *DebugInfo `json:"debug,omitempty"`
}

// Stats 知识库与运行统计。
type Stats struct {
	Collection  string            `json:"collection"`
	Backend     string            `json:"backend"`
	RecordCount int64             `json:"record_count"`
	Config      *CollaboratorInfo `json:"config"`
	Metrics     metrics.Snapshot  `json:"metrics"`
	Cache       *QueryCacheStats  `json:"cache"`
	Runtime     *RuntimeStats     `json:"runtime"`
}

// RuntimeStats 嵌入工作池与熔断器状态，未启用的部分为空。
type RuntimeStats struct {
	EmbedWorkers     *WorkerStats             `json:"embed_workers,omitempty"`
	EmbeddingBreaker *resilience.BreakerStats `json:"embedding_breaker,omitempty"`
	ChatBreaker      *resilience.BreakerStats `json:"chat_breaker,omitempty"`
}

// WorkerStats 工作池快照。
type WorkerStats struct {
	pool.Stats
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
}

// ServiceConfig RAG 服务配置。
type ServiceConfig struct {
	// DocumentPath Reindex 读取的源文档路径。
	DocumentPath string
	// Source 覆盖来源标识，为空时使用文件名。
	Source string
	// Info 协作者描述，store 与参数相关字段由服务自动补全。
	Info *CollaboratorInfo
}

// RAGService 组合 Indexer、Retriever 与 Extractor 提供完整的查询与索引能力。
type RAGService struct {
	indexer   *Indexer
	retriever *Retriever
	extractor *Extractor
	cache     *QueryCache
	store     store.VectorStore
	metrics   *metrics.RAGMetrics
	config    *ServiceConfig
}

// NewRAGService 创建 RAG 服务实例。cache 可为空。
func NewRAGService(
	vectorStore store.VectorStore,
	indexer *Indexer,
	retriever *Retriever,
	extractor *Extractor,
	cache *QueryCache,
	m *metrics.RAGMetrics,
	config *ServiceConfig,
) *RAGService {
	if config == nil {
		config = &ServiceConfig{}
	}
	if m == nil {
		m = metrics.NewRAGMetrics()
	}

	info := CollaboratorInfo{}
	if config.Info != nil {
		info = *config.Info
	}
	info.StoreBackend = vectorStore.Backend()
	info.Collection = vectorStore.Collection()
	info.TopK = retriever.config.TopK
	info.MaxOutputTokens = extractor.config.MaxOutputTokens
	config.Info = &info

	return &RAGService{
		indexer:   indexer,
		retriever: retriever,
		extractor: extractor,
		cache:     cache,
		store:     vectorStore,
		metrics:   m,
		config:    config,
	}
}

// Query 执行一次查询：检索、按需生成、后处理。
// 检索为空时不调用生成模型，直接返回 NotFound。
func (s *RAGService) Query(ctx context.Context, question string, debug bool) (resp *QueryResponse, err error) {
	ctx, span := tracing.Start(ctx, "rag.query", attribute.Bool("rag.debug", debug))
	cacheHit := false
	defer func() {
		notFound := resp != nil && resp.Answer == NotFound
		s.metrics.RecordQuery(cacheHit, notFound, err)
		span.SetAttributes(
			attribute.Bool("rag.cache_hit", cacheHit),
			attribute.Bool("rag.not_found", notFound),
		)
		tracing.End(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 调试请求需要真实检索结果，不走缓存
	if !debug {
		if answer, ok := s.cache.Get(ctx, question); ok {
			cacheHit = true
			return &QueryResponse{Answer: answer}, nil
		}
	}

	result, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answer, err := s.extract(ctx, question, result)
	if err != nil {
		return nil, err
	}

	resp = &QueryResponse{Answer: answer}
	if debug {
		resp.Debug = s.debugInfo(result)
	} else {
		s.cache.Set(ctx, question, answer)
	}
	return resp, nil
}

func (s *RAGService) retrieve(ctx context.Context, question string) (result *RetrievalResult, err error) {
	ctx, span := tracing.Start(ctx, "rag.retrieve")
	start := time.Now()
	defer func() {
		s.metrics.RecordRetrieval(time.Since(start), err)
		if result != nil {
			span.SetAttributes(attribute.Int("rag.results", len(result.Results)))
		}
		tracing.End(span, err)
	}()
	return s.retriever.Retrieve(ctx, question, 0)
}

func (s *RAGService) extract(ctx context.Context, question string, result *RetrievalResult) (answer string, err error) {
	skipped := result.Blank()
	ctx, span := tracing.Start(ctx, "rag.extract", attribute.Bool("rag.generation_skipped", skipped))
	start := time.Now()
	defer func() {
		s.metrics.RecordGeneration(time.Since(start), skipped, err)
		span.SetAttributes(attribute.Bool("rag.not_found", answer == NotFound))
		tracing.End(span, err)
	}()
	return s.extractor.Extract(ctx, question, result)
}

func (s *RAGService) debugInfo(result *RetrievalResult) *DebugInfo {
	n := len(result.Results)
	res := &DebugResults{
		IDs:       make([]string, n),
		Documents: make([]string, n),
		Metadatas: make([]map[string]any, n),
		Distances: make([]float64, n),
	}
	for i, r := range result.Results {
		res.IDs[i] = r.ID
		res.Documents[i] = r.Text
		res.Metadatas[i] = r.Metadata
		res.Distances[i] = r.Distance
	}
	info := *s.config.Info
	return &DebugInfo{Config: &info, Results: res}
}

// Rebuild 使用给定文档重建索引，成功后清空答案缓存。
func (s *RAGService) Rebuild(ctx context.Context, doc *Document) (int, error) {
	n, err := s.indexer.Rebuild(ctx, doc)
	if err != nil {
		return 0, err
	}
	s.invalidateCache(ctx)
	return n, nil
}

// Reindex 从配置的源文档重建索引，成功后清空答案缓存。
func (s *RAGService) Reindex(ctx context.Context) (int, error) {
	n, err := s.indexer.RebuildFromFile(ctx, s.config.DocumentPath, s.config.Source)
	if err != nil {
		return 0, err
	}
	s.invalidateCache(ctx)
	return n, nil
}

func (s *RAGService) invalidateCache(ctx context.Context) {
	if _, err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("failed to clear answer cache after rebuild", "error", err.Error())
	}
}

// Stats 返回知识库统计信息。
func (s *RAGService) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, ErrStore.WithCause(err)
	}

	info := *s.config.Info
	return &Stats{
		Collection:  s.store.Collection(),
		Backend:     s.store.Backend(),
		RecordCount: count,
		Config:      &info,
		Metrics:     s.metrics.Snapshot(),
		Cache:       s.cache.Stats(ctx),
		Runtime:     s.runtimeStats(),
	}, nil
}

func (s *RAGService) runtimeStats() *RuntimeStats {
	rt := &RuntimeStats{
		EmbeddingBreaker: resilience.BreakerOf(s.retriever.embedder),
		ChatBreaker:      resilience.BreakerOf(s.extractor.chat),
	}
	if w := s.indexer.workers; w != nil {
		rt.EmbedWorkers = &WorkerStats{Stats: w.Stats(), Capacity: w.Cap(), Running: w.Running()}
	}
	return rt
}

var _ Service = (*RAGService)(nil)
