// Package ragsvc wires the RAG service: providers, vector store, caches and the HTTP server.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/verbatim-rag/internal/rag/biz"
	"github.com/kart-io/verbatim-rag/internal/rag/handler"
	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/internal/rag/router"
	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/component/redis"
	"github.com/kart-io/verbatim-rag/pkg/infra/app"
	"github.com/kart-io/verbatim-rag/pkg/infra/pool"
	"github.com/kart-io/verbatim-rag/pkg/infra/server"
	"github.com/kart-io/verbatim-rag/pkg/infra/tracing"
	httpserver "github.com/kart-io/verbatim-rag/pkg/infra/server/http"
	"github.com/kart-io/verbatim-rag/pkg/llm"
	"github.com/kart-io/verbatim-rag/pkg/llm/resilience"
	cacheopts "github.com/kart-io/verbatim-rag/pkg/options/cache"
	llmopts "github.com/kart-io/verbatim-rag/pkg/options/llm"
	logopts "github.com/kart-io/verbatim-rag/pkg/options/logger"
	ragopts "github.com/kart-io/verbatim-rag/pkg/options/rag"
	httpopts "github.com/kart-io/verbatim-rag/pkg/options/server/http"
	storeopts "github.com/kart-io/verbatim-rag/pkg/options/store"
	tracingopts "github.com/kart-io/verbatim-rag/pkg/options/tracing"

	// 注册 LLM 供应商
	_ "github.com/kart-io/verbatim-rag/pkg/llm/ollama"
	_ "github.com/kart-io/verbatim-rag/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "verbatim-rag"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	StoreOptions     *storeopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	TracingOptions   *tracingopts.Options
}

// pinger is implemented by providers that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// components holds everything shared by the server and the index job.
type components struct {
	store   store.VectorStore
	service *biz.RAGService
	metrics *metrics.RAGMetrics
	tracer  *tracing.Provider
	closers []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.tracer.Shutdown(ctx); err != nil {
		logger.Warnw("failed to flush traces", "error", err.Error())
	}
}

func (cfg *Config) initLogger() error {
	return cfg.LogOptions.InitService(Name, app.Version())
}

// build 初始化存储、缓存、供应商与业务层。
func (cfg *Config) build(ctx context.Context) (*components, error) {
	c := &components{metrics: metrics.NewRAGMetrics()}
	ready := false
	defer func() {
		if !ready {
			c.close()
		}
	}()

	// 0. Tracing
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.Version())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.tracer = tracer
	if tracer.Enabled() {
		logger.Infow("Tracing enabled",
			"exporter", cfg.TracingOptions.ExporterType,
			"endpoint", cfg.TracingOptions.Endpoint,
		)
	}

	// 1. 向量存储
	vectorStore, err := store.New(ctx, cfg.StoreOptions, cfg.RAGOptions.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.store = vectorStore
	c.closers = append(c.closers, func() { _ = vectorStore.Close(context.Background()) })

	// 2. Redis（答案缓存与向量缓存共用）
	var rdb goredis.UniversalClient
	if cfg.CacheOptions.Active() {
		client, err := redis.Connect(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, caches will be disabled", "error", err.Error())
		} else {
			rdb = client
			c.closers = append(c.closers, func() { _ = client.Close() })
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"answer_cache", cfg.CacheOptions.Enabled,
				"embedding_cache", cfg.CacheOptions.Embedding,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 3. LLM 供应商
	embedder, err := newEmbedder(ctx, cfg.EmbeddingOptions, rdb, cfg.CacheOptions)
	if err != nil {
		return nil, err
	}
	chat, err := newChat(ctx, cfg.ChatOptions)
	if err != nil {
		return nil, err
	}

	// 4. Embedding 工作池
	workers, err := pool.NewPool("rag-embed", &pool.Config{
		Capacity:       cfg.RAGOptions.EmbedWorkers,
		ExpiryDuration: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	c.closers = append(c.closers, workers.Release)

	// 5. Biz 层
	ro := cfg.RAGOptions
	chunker := biz.NewChunker(&biz.ChunkerConfig{
		MaxChars: ro.MaxChars,
		Strategy: ro.ChunkStrategy,
		Overlap:  ro.ChunkOverlap,
	})
	indexer := biz.NewIndexer(vectorStore, embedder, chunker, workers,
		&biz.IndexerConfig{EmbedBatchSize: ro.EmbedBatchSize}, c.metrics)
	retriever := biz.NewRetriever(vectorStore, embedder, &biz.RetrieverConfig{TopK: ro.TopK})
	extractor := biz.NewExtractor(chat, &biz.ExtractorConfig{
		PromptTemplate:  ro.PromptTemplate,
		MaxOutputTokens: ro.MaxOutputTokens,
	})
	queryCache := biz.NewQueryCache(rdb, &biz.QueryCacheConfig{
		Enabled:   cfg.CacheOptions.Enabled,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})

	c.service = biz.NewRAGService(vectorStore, indexer, retriever, extractor, queryCache, c.metrics, &biz.ServiceConfig{
		DocumentPath: ro.DocumentPath,
		Source:       ro.Source,
		Info: &biz.CollaboratorInfo{
			EmbeddingProvider: cfg.EmbeddingOptions.Provider,
			EmbeddingModel:    cfg.EmbeddingOptions.Model,
			ChatProvider:      cfg.ChatOptions.Provider,
			ChatModel:         cfg.ChatOptions.Model,
		},
	})
	logger.Infow("RAG service initialized",
		"store", vectorStore.Backend(),
		"collection", vectorStore.Collection(),
		"top_k", ro.TopK,
		"chunk_strategy", ro.ChunkStrategy,
		"max_chars", ro.MaxChars,
	)
	ready = true
	return c, nil
}

func newEmbedder(ctx context.Context, opts *llmopts.ProviderOptions, rdb goredis.UniversalClient, cache *cacheopts.Options) (llm.EmbeddingProvider, error) {
	p, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	checkProvider(ctx, p, opts)

	var embedder llm.EmbeddingProvider = p
	if opts.Resilience != nil && opts.Resilience.Enabled {
		retry, cb := resilience.ConfigsFromOptions(opts.Resilience)
		embedder = resilience.WrapEmbedding(embedder, retry, cb)
	}
	if rdb != nil && cache.Embedding {
		cached := llm.NewCachedEmbeddingProvider(embedder, rdb, &llm.EmbeddingCacheConfig{
			TTL:       cache.EmbeddingTTL,
			KeyPrefix: "rag:emb:",
			Namespace: opts.Provider + "/" + opts.Model,
		})
		if cache.EmbeddingReset {
			if _, err := cached.ClearCache(ctx); err != nil {
				logger.Warnw("failed to reset embedding cache", "error", err.Error())
			}
		}
		embedder = cached
	}

	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)
	return embedder, nil
}

func newChat(ctx context.Context, opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	p, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	checkProvider(ctx, p, opts)

	var chat llm.ChatProvider = p
	if opts.Resilience != nil && opts.Resilience.Enabled {
		retry, cb := resilience.ConfigsFromOptions(opts.Resilience)
		chat = resilience.WrapChat(chat, retry, cb)
	}

	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
	return chat, nil
}

// checkProvider 探测供应商可用性，失败只告警，首次调用时再报错。
func checkProvider(ctx context.Context, p any, opts *llmopts.ProviderOptions) {
	pg, ok := p.(pinger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		logger.Warnw("llm provider is not reachable",
			"provider", opts.Provider,
			"base_url", opts.BaseURL,
			"error", err.Error(),
		)
	}
}

// Server represents the RAG server.
type Server struct {
	cfg  *Config
	mgr  *server.Manager
	deps *components
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	if err := cfg.initLogger(); err != nil {
		return nil, err
	}
	logger.Info("Starting RAG service...")

	deps, err := cfg.build(ctx)
	if err != nil {
		return nil, err
	}

	httpServer := httpserver.NewServer(cfg.HTTPOptions)
	router.Register(httpServer.Engine(), handler.NewRAGHandler(deps.service, deps.metrics, cfg.RAGOptions.QueryTimeout))

	logger.Info("RAG service is ready")
	return &Server{
		cfg:  cfg,
		mgr:  server.NewManager(cfg.HTTPOptions.ShutdownTimeout, httpServer),
		deps: deps,
	}, nil
}

// Run optionally rebuilds the index, then serves until ctx is cancelled.
// A failed startup rebuild stops the server before it accepts requests.
func (s *Server) Run(ctx context.Context) error {
	defer s.deps.close()

	if s.cfg.RAGOptions.RebuildOnStart {
		n, err := s.deps.service.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("failed to rebuild index on start: %w", err)
		}
		logger.Infow("index rebuilt on start", "chunks", n, "document", s.cfg.RAGOptions.DocumentPath)
	}

	return s.mgr.Run(ctx)
}

// RunIndex rebuilds the index from the configured document and returns the chunk count.
func (cfg *Config) RunIndex(ctx context.Context) (int, error) {
	if err := cfg.initLogger(); err != nil {
		return 0, err
	}

	deps, err := cfg.build(ctx)
	if err != nil {
		return 0, err
	}
	defer deps.close()

	return deps.service.Reindex(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Store: %s (collection %s)\n", cfg.StoreOptions.Backend, cfg.RAGOptions.Collection)
}
