package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/docutil"
	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/infra/pool"
	"github.com/kart-io/verbatim-rag/pkg/infra/tracing"
	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// EmbedBatchSize 单次 Embedding 请求的文本数。
	EmbedBatchSize int
}

// Indexer 负责重建向量索引：切分、全部嵌入、原地清空、一次性写入。
// 重建过程互斥执行。
type Indexer struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	chunker  *Chunker
	workers  *pool.Pool
	config   *IndexerConfig
	metrics  *metrics.RAGMetrics

	mu sync.Mutex
}

// NewIndexer 创建索引器实例。workers 为空时批次串行嵌入。
func NewIndexer(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	chunker *Chunker,
	workers *pool.Pool,
	config *IndexerConfig,
	m *metrics.RAGMetrics,
) *Indexer {
	if config == nil {
		config = &IndexerConfig{EmbedBatchSize: 16}
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 16
	}
	if chunker == nil {
		chunker = NewChunker(nil)
	}
	if m == nil {
		m = metrics.NewRAGMetrics()
	}
	return &Indexer{
		store:    vectorStore,
		embedder: embedder,
		chunker:  chunker,
		workers:  workers,
		config:   config,
		metrics:  m,
	}
}

// RebuildFromFile 读取源文件并重建索引。source 为空时使用文件名作为来源标识。
func (i *Indexer) RebuildFromFile(ctx context.Context, path, source string) (int, error) {
	name, text, err := docutil.ReadDocument(path)
	if err != nil {
		if errors.Is(err, docutil.ErrNotFound) {
			return 0, ErrMissingSourceDocument.WithCause(err)
		}
		return 0, ErrMissingSourceDocument.WithCause(fmt.Errorf("read source document: %w", err))
	}
	if source == "" {
		source = name
	}
	return i.Rebuild(ctx, &Document{Source: source, Text: text})
}

// Rebuild 重建索引并返回写入的分块数。
// 所有嵌入完成前不会修改存储；清空失败仅记录日志，由按 ID 覆盖写入兜底。
// 一旦开始清空，清空与写入会忽略 ctx 的取消。
func (i *Indexer) Rebuild(ctx context.Context, doc *Document) (n int, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ctx, span := tracing.Start(ctx, "rag.index.rebuild", attribute.String("rag.collection", i.store.Collection()))
	start := time.Now()
	defer func() {
		i.metrics.RecordIndexing(n, time.Since(start), err)
		span.SetAttributes(attribute.Int("rag.chunks", n))
		tracing.End(span, err)
	}()

	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return 0, ErrMissingSourceDocument.WithMessage("source document is empty")
	}

	chunks := i.chunker.Chunk(doc.Source, doc.Text)
	if len(chunks) == 0 {
		return 0, ErrMissingSourceDocument.WithMessage("source document yields no chunks")
	}

	if doc.Source != "" {
		span.SetAttributes(attribute.String("rag.document", doc.Source))
	}

	embedCtx, embedSpan := tracing.Start(ctx, "rag.index.embed", attribute.Int("rag.chunks", len(chunks)))
	vectors, err := i.embedAll(embedCtx, chunks)
	tracing.End(embedSpan, err)
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// 清空开始后取消不再生效，避免集合停留在空状态
	writeCtx, writeSpan := tracing.Start(context.WithoutCancel(ctx), "rag.index.write")
	i.clear(writeCtx)

	records := make([]*store.Record, len(chunks))
	for idx, c := range chunks {
		records[idx] = &store.Record{
			ID:        c.ID,
			Text:      c.Text,
			Metadata:  c.Metadata(),
			Embedding: vectors[idx],
		}
	}
	err = i.store.Add(writeCtx, records)
	tracing.End(writeSpan, err)
	if err != nil {
		return 0, ErrStore.WithCause(err)
	}

	logger.Infow("index rebuilt",
		"document", doc.Source,
		"collection", i.store.Collection(),
		"chunks", len(chunks),
		"elapsed", time.Since(start).String(),
	)
	return len(chunks), nil
}

// embedAll 分批嵌入全部分块，结果与分块一一对应。
func (i *Indexer) embedAll(ctx context.Context, chunks []*Chunk) ([][]float32, error) {
	size := i.config.EmbedBatchSize
	batches := (len(chunks) + size - 1) / size
	vectors := make([][]float32, len(chunks))

	embedBatch := func(ctx context.Context, b int) error {
		lo := b * size
		hi := min(lo+size, len(chunks))
		texts := make([]string, hi-lo)
		for j := range texts {
			texts[j] = chunks[lo+j].Text
		}

		out, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return fmt.Errorf("embedding batch %d: expected %d vectors, got %d", b, len(texts), len(out))
		}
		copy(vectors[lo:hi], out)
		return nil
	}

	var err error
	if i.workers != nil && batches > 1 {
		err = i.workers.Each(ctx, batches, embedBatch)
	} else {
		for b := 0; b < batches && err == nil; b++ {
			if err = ctx.Err(); err == nil {
				err = embedBatch(ctx, b)
			}
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrEmbedding.WithCause(err)
	}

	for idx, v := range vectors {
		if len(v) == 0 {
			return nil, ErrEmbedding.WithCause(fmt.Errorf("no embedding returned for chunk %s", chunks[idx].ID))
		}
	}
	return vectors, nil
}

// clear 原地清空集合，失败时按空集合继续。
func (i *Indexer) clear(ctx context.Context) {
	ids, err := i.store.ListIDs(ctx)
	if err != nil {
		logger.Warnw("failed to list existing ids, proceeding as if empty",
			"collection", i.store.Collection(), "error", err.Error())
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := i.store.Delete(ctx, ids); err != nil {
		logger.Warnw("failed to clear collection, proceeding with upsert",
			"collection", i.store.Collection(), "ids", len(ids), "error", err.Error())
		return
	}
	logger.Debugw("collection cleared", "collection", i.store.Collection(), "deleted", len(ids))
}
