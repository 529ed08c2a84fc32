package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordQuery(t *testing.T) {
	m := NewRAGMetrics()

	m.RecordQuery(true, false, nil)
	m.RecordQuery(false, true, nil)
	m.RecordQuery(false, false, nil)
	m.RecordQuery(false, false, errors.New("boom"))

	s := m.Snapshot()
	assert.EqualValues(t, 4, s.QueriesTotal)
	assert.EqualValues(t, 1, s.QueriesCacheHits)
	assert.EqualValues(t, 1, s.QueriesNotFound)
	assert.EqualValues(t, 1, s.QueriesErrors)
	assert.InDelta(t, 1.0/3.0, s.CacheHitRate, 1e-9)
}

func TestRecordRetrievalAndGeneration(t *testing.T) {
	m := NewRAGMetrics()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(time.Second, errors.New("store down"))

	m.RecordGeneration(0, true, nil)
	m.RecordGeneration(2*time.Second, false, nil)
	m.RecordGeneration(time.Second, false, errors.New("timeout"))

	s := m.Snapshot()
	assert.EqualValues(t, 3, s.RetrievalTotal)
	assert.EqualValues(t, 1, s.RetrievalErrors)
	assert.InDelta(t, 0.2, s.RetrievalAvgSeconds, 1e-9)

	assert.EqualValues(t, 2, s.GenerationTotal)
	assert.EqualValues(t, 1, s.GenerationSkipped)
	assert.EqualValues(t, 1, s.GenerationErrors)
	assert.InDelta(t, 2.0, s.GenerationAvgSeconds, 1e-9)
}

func TestRecordIndexing(t *testing.T) {
	m := NewRAGMetrics()

	m.RecordIndexing(5, time.Second, nil)
	m.RecordIndexing(0, time.Second, errors.New("empty"))
	m.RecordIndexing(2, time.Second, nil)

	s := m.Snapshot()
	assert.EqualValues(t, 3, s.RebuildsTotal)
	assert.EqualValues(t, 1, s.RebuildErrors)
	assert.EqualValues(t, 2, s.ChunksIndexed)
	assert.NotZero(t, s.LastRebuildUnix)
}

func TestConcurrentRecording(t *testing.T) {
	m := NewRAGMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(false, false, nil)
			m.RecordRetrieval(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.EqualValues(t, 50, s.QueriesTotal)
	assert.EqualValues(t, 50, s.RetrievalTotal)
}

func TestExport(t *testing.T) {
	m := NewRAGMetrics()
	m.RecordQuery(true, false, nil)

	out := m.Export("verbatim", "rag")
	assert.Contains(t, out, "# TYPE verbatim_rag_queries_total counter\n")
	assert.Contains(t, out, "verbatim_rag_queries_total 1\n")
	assert.Contains(t, out, "verbatim_rag_cache_hit_rate 1.000000\n")
	assert.True(t, strings.HasSuffix(out, "\n"))

	noSub := m.Export("rag", "")
	assert.Contains(t, noSub, "rag_queries_total 1\n")
}
