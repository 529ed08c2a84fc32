package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kart-io/verbatim-rag/internal/rag/store"
	"github.com/kart-io/verbatim-rag/pkg/llm"
)

// keywordEmbedder 按关键词出现次数生成向量，结果可预测。
type keywordEmbedder struct {
	vocab []string
	calls atomic.Int32
	err   error

	mu     sync.Mutex
	events *[]string
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	if len(vocab) == 0 {
		vocab = []string{"skills", "python", "experience", "years"}
	}
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) Name() string { return "keyword" }

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.vocab)+1)
	for i, w := range e.vocab {
		v[i] = float32(strings.Count(lower, w))
	}
	// 保证非零向量
	v[len(e.vocab)] = 1
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.record("embed")
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *keywordEmbedder) record(event string) {
	if e.events == nil {
		return
	}
	e.mu.Lock()
	*e.events = append(*e.events, event)
	e.mu.Unlock()
}

// countingChat 返回固定输出并统计调用次数。
type countingChat struct {
	output     string
	err        error
	calls      atomic.Int32
	lastPrompt string
	lastOpts   llm.GenerateOptions
}

func (c *countingChat) Name() string { return "counting" }

func (c *countingChat) Generate(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	c.calls.Add(1)
	c.lastPrompt = prompt
	c.lastOpts = opts
	if c.err != nil {
		return "", c.err
	}
	return c.output, nil
}

// flakyStore 在内存存储之上注入故障并记录调用顺序。
type flakyStore struct {
	*store.MemoryStore

	listErr   error
	deleteErr error
	addErr    error
	queryErr  error
	onList    func()

	mu     sync.Mutex
	events *[]string
}

func newFlakyStore(events *[]string) *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore("docs"), events: events}
}

func (s *flakyStore) record(event string) {
	if s.events == nil {
		return
	}
	s.mu.Lock()
	*s.events = append(*s.events, event)
	s.mu.Unlock()
}

func (s *flakyStore) ListIDs(ctx context.Context) ([]string, error) {
	s.record("list")
	if s.onList != nil {
		s.onList()
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListIDs(ctx)
}

func (s *flakyStore) Delete(ctx context.Context, ids []string) error {
	s.record("delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, ids)
}

func (s *flakyStore) Add(ctx context.Context, records []*store.Record) error {
	s.record("add")
	if s.addErr != nil {
		return s.addErr
	}
	return s.MemoryStore.Add(ctx, records)
}

func (s *flakyStore) Query(ctx context.Context, vector []float32, topK int) ([]*store.QueryResult, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.MemoryStore.Query(ctx, vector, topK)
}

var errBoom = errors.New("boom")

const resumeText = "SKILLS\nPython, Go, Rust\n\nEXPERIENCE\n5 years backend engineering"
