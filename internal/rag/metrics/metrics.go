// Package metrics 提供 RAG 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// RAGMetrics RAG 服务业务指标，所有方法并发安全。
type RAGMetrics struct {
	// 查询指标
	queriesTotal     atomic.Uint64
	queriesCacheHits atomic.Uint64
	queriesNotFound  atomic.Uint64
	queriesErrors    atomic.Uint64

	// 检索指标
	retrievalTotal    atomic.Uint64
	retrievalErrors   atomic.Uint64
	retrievalDuration atomic.Int64 // 纳秒

	// 生成指标
	generationTotal    atomic.Uint64
	generationSkipped  atomic.Uint64 // 空上下文未调用模型
	generationErrors   atomic.Uint64
	generationDuration atomic.Int64

	// 索引指标
	rebuildsTotal   atomic.Uint64
	rebuildErrors   atomic.Uint64
	chunksIndexed   atomic.Uint64
	lastRebuildUnix atomic.Int64

	startTime time.Time
}

// NewRAGMetrics 创建指标收集器。
func NewRAGMetrics() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

// RecordQuery 记录一次查询的结果。
func (m *RAGMetrics) RecordQuery(cacheHit, notFound bool, err error) {
	m.queriesTotal.Add(1)
	switch {
	case err != nil:
		m.queriesErrors.Add(1)
	case cacheHit:
		m.queriesCacheHits.Add(1)
	}
	if err == nil && notFound {
		m.queriesNotFound.Add(1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *RAGMetrics) RecordRetrieval(d time.Duration, err error) {
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	m.retrievalDuration.Add(int64(d))
}

// RecordGeneration 记录生成调用。skipped 表示因上下文为空未调用模型。
func (m *RAGMetrics) RecordGeneration(d time.Duration, skipped bool, err error) {
	if skipped {
		m.generationSkipped.Add(1)
		return
	}
	m.generationTotal.Add(1)
	if err != nil {
		m.generationErrors.Add(1)
		return
	}
	m.generationDuration.Add(int64(d))
}

// RecordIndexing 记录一次重建。
func (m *RAGMetrics) RecordIndexing(chunks int, _ time.Duration, err error) {
	m.rebuildsTotal.Add(1)
	if err != nil {
		m.rebuildErrors.Add(1)
		return
	}
	m.chunksIndexed.Store(uint64(chunks))
	m.lastRebuildUnix.Store(time.Now().Unix())
}

// Snapshot 指标快照。
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	QueriesTotal     uint64  `json:"queries_total"`
	QueriesCacheHits uint64  `json:"queries_cache_hits"`
	QueriesNotFound  uint64  `json:"queries_not_found"`
	QueriesErrors    uint64  `json:"queries_errors"`
	CacheHitRate     float64 `json:"cache_hit_rate"`

	RetrievalTotal      uint64  `json:"retrieval_total"`
	RetrievalErrors     uint64  `json:"retrieval_errors"`
	RetrievalAvgSeconds float64 `json:"retrieval_avg_seconds"`

	GenerationTotal      uint64  `json:"generation_total"`
	GenerationSkipped    uint64  `json:"generation_skipped"`
	GenerationErrors     uint64  `json:"generation_errors"`
	GenerationAvgSeconds float64 `json:"generation_avg_seconds"`

	RebuildsTotal   uint64 `json:"rebuilds_total"`
	RebuildErrors   uint64 `json:"rebuild_errors"`
	ChunksIndexed   uint64 `json:"chunks_indexed"`
	LastRebuildUnix int64  `json:"last_rebuild_unix,omitempty"`
}

func avgSeconds(total int64, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return time.Duration(total).Seconds() / float64(count)
}

// Snapshot 返回当前指标快照。
func (m *RAGMetrics) Snapshot() Snapshot {
	s := Snapshot{
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
		QueriesTotal:      m.queriesTotal.Load(),
		QueriesCacheHits:  m.queriesCacheHits.Load(),
		QueriesNotFound:   m.queriesNotFound.Load(),
		QueriesErrors:     m.queriesErrors.Load(),
		RetrievalTotal:    m.retrievalTotal.Load(),
		RetrievalErrors:   m.retrievalErrors.Load(),
		GenerationTotal:   m.generationTotal.Load(),
		GenerationSkipped: m.generationSkipped.Load(),
		GenerationErrors:  m.generationErrors.Load(),
		RebuildsTotal:     m.rebuildsTotal.Load(),
		RebuildErrors:     m.rebuildErrors.Load(),
		ChunksIndexed:     m.chunksIndexed.Load(),
		LastRebuildUnix:   m.lastRebuildUnix.Load(),
	}
	if ok := s.QueriesTotal - s.QueriesErrors; ok > 0 {
		s.CacheHitRate = float64(s.QueriesCacheHits) / float64(ok)
	}
	s.RetrievalAvgSeconds = avgSeconds(m.retrievalDuration.Load(), s.RetrievalTotal-s.RetrievalErrors)
	s.GenerationAvgSeconds = avgSeconds(m.generationDuration.Load(), s.GenerationTotal-s.GenerationErrors)
	return s
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix += "_" + subsystem
	}
	s := m.Snapshot()

	var sb strings.Builder
	write := func(name, typ, help string, value any) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", prefix, name, typ)
		switch v := value.(type) {
		case float64:
			fmt.Fprintf(&sb, "%s_%s %.6f\n\n", prefix, name, v)
		default:
			fmt.Fprintf(&sb, "%s_%s %v\n\n", prefix, name, v)
		}
	}

	write("queries_total", "counter", "Total number of RAG queries.", s.QueriesTotal)
	write("queries_cache_hits_total", "counter", "Number of answers served from cache.", s.QueriesCacheHits)
	write("queries_not_found_total", "counter", "Number of NOT_FOUND answers.", s.QueriesNotFound)
	write("queries_errors_total", "counter", "Number of failed queries.", s.QueriesErrors)
	write("cache_hit_rate", "gauge", "Cache hit rate (0-1).", s.CacheHitRate)
	write("retrieval_total", "counter", "Total number of retrievals.", s.RetrievalTotal)
	write("retrieval_errors_total", "counter", "Number of failed retrievals.", s.RetrievalErrors)
	write("retrieval_avg_seconds", "gauge", "Average retrieval latency.", s.RetrievalAvgSeconds)
	write("generation_total", "counter", "Number of generation calls.", s.GenerationTotal)
	write("generation_skipped_total", "counter", "Queries answered without calling the model.", s.GenerationSkipped)
	write("generation_errors_total", "counter", "Number of failed generation calls.", s.GenerationErrors)
	write("generation_avg_seconds", "gauge", "Average generation latency.", s.GenerationAvgSeconds)
	write("rebuilds_total", "counter", "Number of index rebuilds.", s.RebuildsTotal)
	write("rebuild_errors_total", "counter", "Number of failed index rebuilds.", s.RebuildErrors)
	write("chunks_indexed", "gauge", "Chunks written by the last successful rebuild.", s.ChunksIndexed)

	return sb.String()
}
