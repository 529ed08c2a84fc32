package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeopts "github.com/kart-io/verbatim-rag/pkg/options/store"
)

func newBackends(t *testing.T) map[string]VectorStore {
	t.Helper()
	ctx := context.Background()

	sqliteOpts := storeopts.NewOptions()
	sqliteOpts.SQLite.Path = ":memory:"
	sqliteStore, err := New(ctx, sqliteOpts, "docs")
	require.NoError(t, err)

	memOpts := storeopts.NewOptions()
	memOpts.Backend = storeopts.BackendMemory
	memStore, err := New(ctx, memOpts, "docs")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sqliteStore.Close(ctx)
		_ = memStore.Close(ctx)
	})
	return map[string]VectorStore{
		"memory": memStore,
		"sqlite": sqliteStore,
	}
}

func sampleRecords() []*Record {
	return []*Record{
		{ID: "resume.txt-0000", Text: "SKILLS\nPython, Go, Rust", Metadata: map[string]any{"section_name": "SKILLS", "sequence_index": 0}, Embedding: []float32{1, 0, 0}},
		{ID: "resume.txt-0001", Text: "EXPERIENCE\n5 years", Metadata: map[string]any{"section_name": "EXPERIENCE", "sequence_index": 1}, Embedding: []float32{0, 1, 0}},
		{ID: "resume.txt-0002", Text: "EDUCATION\nBSc", Metadata: map[string]any{"section_name": "EDUCATION", "sequence_index": 2}, Embedding: []float32{0, 0, 1}},
	}
}

func TestVectorStore_AddQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, s.Backend())
			assert.Equal(t, "docs", s.Collection())

			require.NoError(t, s.Add(ctx, sampleRecords()))

			results, err := s.Query(ctx, []float32{0.9, 0.1, 0}, 2)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "resume.txt-0000", results[0].ID)
			assert.Equal(t, "SKILLS\nPython, Go, Rust", results[0].Text)
			assert.Equal(t, "SKILLS", results[0].Metadata["section_name"])
			assert.EqualValues(t, 0, results[0].Metadata["sequence_index"])
			assert.InDelta(t, 0.02, results[0].Distance, 1e-6)
			assert.Equal(t, "resume.txt-0001", results[1].ID)
			assert.LessOrEqual(t, results[0].Distance, results[1].Distance)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)
		})
	}
}

func TestVectorStore_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			results, err := s.Query(ctx, []float32{1, 2, 3}, 3)
			require.NoError(t, err)
			assert.Empty(t, results)

			ids, err := s.ListIDs(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestVectorStore_UpsertByID(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(ctx, sampleRecords()))
			require.NoError(t, s.Add(ctx, []*Record{
				{ID: "resume.txt-0000", Text: "SKILLS\nGo", Embedding: []float32{1, 0, 0}},
			}))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)

			results, err := s.Query(ctx, []float32{1, 0, 0}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "SKILLS\nGo", results[0].Text)
		})
	}
}

func TestVectorStore_ClearInPlace(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(ctx, sampleRecords()))

			ids, err := s.ListIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"resume.txt-0000", "resume.txt-0001", "resume.txt-0002"}, ids)

			require.NoError(t, s.Delete(ctx, ids))
			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, s.Delete(ctx, nil))
		})
	}
}

func TestVectorStore_Validation(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Add(ctx, []*Record{{ID: "", Embedding: []float32{1}}}))
			assert.Error(t, s.Add(ctx, []*Record{{ID: "a"}}))
			assert.ErrorIs(t, s.Add(ctx, []*Record{
				{ID: "a", Embedding: []float32{1, 2}},
				{ID: "b", Embedding: []float32{1}},
			}), ErrDimensionMismatch)

			require.NoError(t, s.Add(ctx, sampleRecords()))
			assert.ErrorIs(t, s.Add(ctx, []*Record{{ID: "x", Embedding: []float32{1}}}), ErrDimensionMismatch)

			_, err := s.Query(ctx, []float32{1, 2}, 3)
			assert.ErrorIs(t, err, ErrDimensionMismatch)
		})
	}
}

func TestVectorStore_TieBreakByID(t *testing.T) {
	ctx := context.Background()
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(ctx, []*Record{
				{ID: "b", Text: "b", Embedding: []float32{1, 0}},
				{ID: "a", Text: "a", Embedding: []float32{1, 0}},
			}))
			results, err := s.Query(ctx, []float32{1, 0}, 5)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "a", results[0].ID)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	opts := storeopts.NewOptions()
	opts.SQLite.Path = filepath.Join(t.TempDir(), "rag.db")

	s, err := New(ctx, opts, "docs")
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, sampleRecords()))
	require.NoError(t, s.Close(ctx))

	reopened, err := New(ctx, opts, "docs")
	require.NoError(t, err)
	defer reopened.Close(ctx)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// 其他集合互不影响
	other, err := New(ctx, opts, "other")
	require.NoError(t, err)
	defer other.Close(ctx)
	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("docs")
	require.NoError(t, s.Add(ctx, sampleRecords()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.Query(ctx, []float32{0, 0, 1}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "resume.txt-0002", results[0].ID)
		}()
	}
	wg.Wait()
}

func TestNew_UnsupportedBackend(t *testing.T) {
	opts := storeopts.NewOptions()
	opts.Backend = "chroma"
	_, err := New(context.Background(), opts, "docs")
	assert.Error(t, err)

	_, err = New(context.Background(), storeopts.NewOptions(), "")
	assert.Error(t, err)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.4028235e38}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
