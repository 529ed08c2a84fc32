package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/pkg/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/"
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(map[string]any{
		"base_url":    "http://ollama:11434",
		"embed_model": "mxbai-embed-large",
		"chat_model":  "llama3",
		"timeout":     3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())

	op := p.(*Provider)
	assert.Equal(t, "mxbai-embed-large", op.config.EmbedModel)
	assert.Equal(t, "llama3", op.config.ChatModel)
	assert.Equal(t, 3*time.Second, op.httpClient.Timeout)
}

func TestProviderRegistered(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := embedResponse{Model: req.Model}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{2, 1}, vecs[2])

	vec, err := p.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := newTestProvider(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedCountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	})

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "tinyllama", req.Model)
		assert.Equal(t, 0.0, req.Options.Temperature)
		assert.Equal(t, 64, req.Options.NumPredict)
		assert.Equal(t, []string{"\n\n"}, req.Options.Stop)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: " Python, Go ", Done: true})
	})

	out, err := p.Generate(context.Background(), "prompt", llm.GenerateOptions{
		MaxTokens: 64,
		Stop:      []string{"\n\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, " Python, Go ", out)
}

func TestGenerateServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.Generate(context.Background(), "prompt", llm.GenerateOptions{})
	var statusErr *llm.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "model not found", statusErr.Body)
	assert.Contains(t, err.Error(), "status code 404")
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	assert.NoError(t, p.Ping(context.Background()))
}
