package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	assert.Equal(t, "sqlite", o.StoreOptions.Backend)
	assert.Equal(t, "nomic-embed-text", o.EmbeddingOptions.Model)
	assert.Equal(t, "tinyllama", o.ChatOptions.Model)
	assert.Equal(t, "docs", o.RAGOptions.Collection)
	assert.Equal(t, 3, o.RAGOptions.TopK)
	assert.Equal(t, 64, o.RAGOptions.MaxOutputTokens)
	assert.Equal(t, 900, o.RAGOptions.MaxChars)
	assert.Equal(t, "resume.txt", o.RAGOptions.DocumentPath)
	assert.False(t, o.TracingOptions.Enabled)
	assert.Equal(t, []string{"/health", "/metrics"}, o.HTTPOptions.Middleware.Tracing.SkipPaths)
}

func TestFlags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	for section, flag := range map[string]string{
		"http":      "http.addr",
		"store":     "store.backend",
		"embedding": "embedding.model",
		"chat":      "chat.model",
		"rag":       "rag.top-k",
		"cache":     "cache.redis.host",
		"tracing":   "tracing.enabled",
	} {
		fs, ok := fss.FlagSets[section]
		require.True(t, ok, section)
		assert.NotNil(t, fs.Lookup(flag), flag)
	}

	require.NoError(t, fss.FlagSets["rag"].Parse([]string{"--rag.top-k=5", "--rag.chunk-strategy=window"}))
	assert.Equal(t, 5, o.RAGOptions.TopK)
	assert.Equal(t, "window", o.RAGOptions.ChunkStrategy)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewServerOptions()
	o.StoreOptions.Backend = "postgres"
	o.ChatOptions.Provider = "openai"
	o.RAGOptions.TopK = 0

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "chat.api-key is required")
	assert.Contains(t, err.Error(), "rag.top-k")
}

func TestConfig(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.RAGOptions, cfg.RAGOptions)
	assert.Same(t, o.StoreOptions, cfg.StoreOptions)
	assert.Same(t, o.TracingOptions, cfg.TracingOptions)
}
