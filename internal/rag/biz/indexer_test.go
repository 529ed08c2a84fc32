package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/infra/pool"
)

func seedStale(t *testing.T, s store.VectorStore) {
	t.Helper()
	err := s.Add(context.Background(), []*store.Record{{
		ID:        "old.txt-0000",
		Text:      "stale",
		Metadata:  map[string]any{MetaSource: "old.txt"},
		Embedding: []float32{0, 0, 0, 0, 1},
	}})
	require.NoError(t, err)
}

func TestRebuildEmptyDocument(t *testing.T) {
	s := newFlakyStore(nil)
	emb := newKeywordEmbedder()
	idx := NewIndexer(s, emb, nil, nil, nil, nil)

	for _, text := range []string{"", "  \n\n\t "} {
		_, err := idx.Rebuild(context.Background(), &Document{Source: "resume.txt", Text: text})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingSourceDocument))
	}
	_, err := idx.Rebuild(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrMissingSourceDocument))
	assert.Zero(t, emb.calls.Load())
}

func TestRebuildEmbedsBeforeClearing(t *testing.T) {
	var events []string
	s := newFlakyStore(&events)
	seedStale(t, s)
	events = events[:0]

	emb := newKeywordEmbedder()
	emb.events = &events
	idx := NewIndexer(s, emb, nil, nil, nil, nil)

	n, err := idx.Rebuild(context.Background(), &Document{Source: "resume.txt", Text: resumeText})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"embed", "list", "delete", "add"}, events)

	ids, err := s.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"resume.txt-0000", "resume.txt-0001"}, ids)
}

func TestRebuildEmbeddingFailureLeavesStoreUntouched(t *testing.T) {
	var events []string
	s := newFlakyStore(&events)
	seedStale(t, s)
	events = events[:0]

	emb := newKeywordEmbedder()
	emb.err = errBoom
	idx := NewIndexer(s, emb, nil, nil, nil, nil)

	_, err := idx.Rebuild(context.Background(), &Document{Source: "resume.txt", Text: resumeText})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.Empty(t, events)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRebuildClearFailureIsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*flakyStore)
	}{
		{"list fails", func(s *flakyStore) { s.listErr = errBoom }},
		{"delete fails", func(s *flakyStore) { s.deleteErr = errBoom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFlakyStore(nil)
			idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)
			doc := &Document{Source: "resume.txt", Text: resumeText}

			_, err := idx.Rebuild(context.Background(), doc)
			require.NoError(t, err)

			tt.setup(s)
			n, err := idx.Rebuild(context.Background(), doc)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			// 按 ID 覆盖写入，不会产生重复记录
			count, err := s.Count(context.Background())
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)
		})
	}
}

func TestRebuildAddFailure(t *testing.T) {
	s := newFlakyStore(nil)
	s.addErr = errBoom
	idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)

	_, err := idx.Rebuild(context.Background(), &Document{Source: "resume.txt", Text: resumeText})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
}

func TestRebuildDeterministic(t *testing.T) {
	s := newFlakyStore(nil)
	idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)
	doc := &Document{Source: "resume.txt", Text: resumeText}

	_, err := idx.Rebuild(context.Background(), doc)
	require.NoError(t, err)
	first, err := s.ListIDs(context.Background())
	require.NoError(t, err)

	_, err = idx.Rebuild(context.Background(), doc)
	require.NoError(t, err)
	second, err := s.ListIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRebuildConcurrentBatchesKeepOrder(t *testing.T) {
	workers, err := pool.NewPool("embed-test", &pool.Config{Capacity: 4})
	require.NoError(t, err)
	defer workers.Release()

	var sb strings.Builder
	sections := []string{"SKILLS\npython", "EXPERIENCE\nyears", "PROJECTS\nnone", "SKILLS\npython python"}
	sb.WriteString(strings.Join(sections, "\n\n"))

	s := newFlakyStore(nil)
	emb := newKeywordEmbedder()
	m := metrics.NewRAGMetrics()
	idx := NewIndexer(s, emb, nil, workers, &IndexerConfig{EmbedBatchSize: 1}, m)

	n, err := idx.Rebuild(context.Background(), &Document{Source: "doc", Text: sb.String()})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.EqualValues(t, 4, emb.calls.Load())

	for _, text := range sections {
		res, err := s.Query(context.Background(), emb.vector(text), 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, text, res[0].Text)
		assert.Zero(t, res[0].Distance)
	}

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.RebuildsTotal)
	assert.EqualValues(t, 4, snap.ChunksIndexed)
}

func TestRebuildCanceled(t *testing.T) {
	s := newFlakyStore(nil)
	idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Rebuild(ctx, &Document{Source: "resume.txt", Text: resumeText})
	assert.ErrorIs(t, err, context.Canceled)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRebuildFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte(resumeText), 0o600))

	s := newFlakyStore(nil)
	idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)

	n, err := idx.RebuildFromFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ids, _ := s.ListIDs(context.Background())
	assert.Equal(t, "resume.txt-0000", ids[0])

	_, err = idx.RebuildFromFile(context.Background(), path, "cv")
	require.NoError(t, err)
	ids, _ = s.ListIDs(context.Background())
	assert.Equal(t, []string{"cv-0000", "cv-0001"}, ids)

	_, err = idx.RebuildFromFile(context.Background(), filepath.Join(dir, "missing.txt"), "")
	assert.True(t, errors.Is(err, ErrMissingSourceDocument))
}

func TestRebuildCanceledWhileClearing(t *testing.T) {
	s := newFlakyStore(nil)
	seedStale(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.onList = cancel

	idx := NewIndexer(s, newKeywordEmbedder(), nil, nil, nil, nil)
	n, err := idx.Rebuild(ctx, &Document{Source: "resume.txt", Text: resumeText})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := s.ListIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"resume.txt-0000", "resume.txt-0001"}, ids)
}

func TestRebuildLogsDocumentName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.log")
	opt := option.DefaultLogOption()
	opt.Format = "json"
	opt.Level = "info"
	opt.OutputPaths = []string{path}
	log, err := logger.New(opt)
	require.NoError(t, err)

	prev := logger.Global()
	logger.SetGlobal(log)
	t.Cleanup(func() { logger.SetGlobal(prev) })

	idx := NewIndexer(newFlakyStore(nil), newKeywordEmbedder(), nil, nil, nil, nil)
	_, err = idx.Rebuild(context.Background(), &Document{Source: "resume.txt", Text: resumeText})
	require.NoError(t, err)
	_ = log.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document":"resume.txt"`)
	assert.NotContains(t, string(data), `"caller":"resume.txt"`)
}
