package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/internal/rag/store"
)

func retrieval(texts ...string) *RetrievalResult {
	r := &RetrievalResult{Query: "q"}
	for i, t := range texts {
		r.Results = append(r.Results, &store.QueryResult{ID: ChunkID("doc", i), Text: t, Distance: float64(i)})
	}
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Python", "Python"},
		{`"Python"`, "Python"},
		{"  Python, Go, Rust \n", "Python, Go, Rust"},
		{`" spaced "`, "spaced"},
		{`"`, `"`},
		{`""`, NotFound},
		{"", NotFound},
		{"   \n", NotFound},
		{"NOT_FOUND", NotFound},
		{`"unbalanced`, `"unbalanced`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestIsPromptEcho(t *testing.T) {
	assert.True(t, IsPromptEcho("Context:\nSKILLS"))
	assert.True(t, IsPromptEcho("the question: what"))
	assert.True(t, IsPromptEcho("You are an Information Extraction System"))
	assert.False(t, IsPromptEcho("Python, Go, Rust"))
}

func TestBuildContextAndPrompt(t *testing.T) {
	e := NewExtractor(&countingChat{}, nil)

	ctxText := BuildContext(retrieval("first", "second"))
	assert.Equal(t, "first\n\n---\n\nsecond", ctxText)

	prompt := e.BuildPrompt(ctxText, "What are the skills?")
	assert.Contains(t, prompt, "Context:\nfirst\n\n---\n\nsecond\n\nQuestion: What are the skills?")
	assert.NotContains(t, prompt, "{{")
}

func TestExtractEmptyContextSkipsModel(t *testing.T) {
	chat := &countingChat{output: "should not be used"}
	e := NewExtractor(chat, nil)

	for _, r := range []*RetrievalResult{retrieval(), retrieval("", "  "), nil} {
		answer, err := e.Extract(context.Background(), "q", r)
		require.NoError(t, err)
		assert.Equal(t, NotFound, answer)
	}
	assert.Zero(t, chat.calls.Load())
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"verbatim", "Python, Go, Rust", "Python, Go, Rust"},
		{"quoted", `"Python"`, "Python"},
		{"echo", "Context:\nSKILLS\nPython", NotFound},
		{"empty", "  ", NotFound},
		{"sentinel", "NOT_FOUND", NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &countingChat{output: tt.output}
			e := NewExtractor(chat, &ExtractorConfig{MaxOutputTokens: 32})

			answer, err := e.Extract(context.Background(), "What are the skills?", retrieval("SKILLS\nPython, Go, Rust"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer)
			assert.EqualValues(t, 1, chat.calls.Load())
			assert.Zero(t, chat.lastOpts.Temperature)
			assert.Equal(t, 32, chat.lastOpts.MaxTokens)
			assert.Equal(t, DefaultStopSequences, chat.lastOpts.Stop)
		})
	}
}

func TestExtractGenerationError(t *testing.T) {
	chat := &countingChat{err: errBoom}
	e := NewExtractor(chat, nil)

	_, err := e.Extract(context.Background(), "q", retrieval("SKILLS\nGo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
	assert.ErrorIs(t, err, errBoom)
}

func TestExtractCanceled(t *testing.T) {
	chat := &countingChat{output: "Go"}
	e := NewExtractor(chat, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "q", retrieval("SKILLS\nGo"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, chat.calls.Load())
}

func TestCustomPromptTemplate(t *testing.T) {
	chat := &countingChat{output: "Go"}
	e := NewExtractor(chat, &ExtractorConfig{PromptTemplate: "C={{context}} Q={{question}}"})

	_, err := e.Extract(context.Background(), "lang?", retrieval("Go"))
	require.NoError(t, err)
	assert.Equal(t, "C=Go Q=lang?", chat.lastPrompt)
}

func TestRetrievalResultBlank(t *testing.T) {
	assert.True(t, (*RetrievalResult)(nil).Blank())
	assert.True(t, retrieval().Blank())
	assert.True(t, retrieval("", " ", "\n\t").Blank())
	assert.False(t, retrieval(" ", "Go").Blank())
}
