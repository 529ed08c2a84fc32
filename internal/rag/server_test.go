package ragsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/pkg/llm"
	cacheopts "github.com/kart-io/verbatim-rag/pkg/options/cache"
	llmopts "github.com/kart-io/verbatim-rag/pkg/options/llm"
)

func newEmbeddingFixture(t *testing.T) (*miniredis.Miniredis, goredis.UniversalClient, *llmopts.ProviderOptions) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	opts := llmopts.NewEmbeddingOptions()
	opts.BaseURL = srv.URL
	opts.Resilience.Enabled = false
	return mr, rdb, opts
}

func TestNewEmbedderCached(t *testing.T) {
	mr, rdb, opts := newEmbeddingFixture(t)
	require.NoError(t, mr.Set("rag:emb:stale", "[1,2]"))

	cache := cacheopts.NewOptions()
	cache.Embedding = true

	embedder, err := newEmbedder(context.Background(), opts, rdb, cache)
	require.NoError(t, err)

	_, ok := embedder.(*llm.CachedEmbeddingProvider)
	assert.True(t, ok)
	assert.True(t, mr.Exists("rag:emb:stale"))
}

func TestNewEmbedderResetsCache(t *testing.T) {
	mr, rdb, opts := newEmbeddingFixture(t)
	require.NoError(t, mr.Set("rag:emb:stale", "[1,2]"))
	require.NoError(t, mr.Set("rag:answer:q", "Python"))

	cache := cacheopts.NewOptions()
	cache.Embedding = true
	cache.EmbeddingReset = true

	_, err := newEmbedder(context.Background(), opts, rdb, cache)
	require.NoError(t, err)

	assert.False(t, mr.Exists("rag:emb:stale"))
	assert.True(t, mr.Exists("rag:answer:q"))
}

func TestNewEmbedderWithoutRedis(t *testing.T) {
	_, _, opts := newEmbeddingFixture(t)

	cache := cacheopts.NewOptions()
	cache.Embedding = true
	cache.EmbeddingReset = true

	embedder, err := newEmbedder(context.Background(), opts, nil, cache)
	require.NoError(t, err)
	assert.Equal(t, "ollama", embedder.Name())
}
