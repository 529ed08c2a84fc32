package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
)

// MemoryStore 进程内向量存储，暴力计算 L2 距离。
type MemoryStore struct {
	collection string

	mu      sync.RWMutex
	dim     int
	records map[string]*Record
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储。
func NewMemoryStore(collection string) *MemoryStore {
	return &MemoryStore{
		collection: collection,
		records:    make(map[string]*Record),
	}
}

func (s *MemoryStore) Backend() string    { return "memory" }
func (s *MemoryStore) Collection() string { return s.collection }

func (s *MemoryStore) EnsureCollection(context.Context) error { return nil }

func (s *MemoryStore) Add(_ context.Context, records []*Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 && s.dim != dim {
		return fmt.Errorf("%w: collection %d, records %d", ErrDimensionMismatch, s.dim, dim)
	}
	s.dim = dim
	for _, r := range records {
		s.records[r.ID] = &Record{
			ID:        r.ID,
			Text:      r.Text,
			Metadata:  cloneMetadata(r.Metadata),
			Embedding: append([]float32(nil), r.Embedding...),
		}
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int) ([]*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 || topK <= 0 {
		return []*QueryResult{}, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: collection %d, query %d", ErrDimensionMismatch, s.dim, len(vector))
	}

	results := make([]*QueryResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, &QueryResult{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: cloneMetadata(r.Metadata),
			Distance: textutil.L2Distance(vector, r.Embedding),
		})
	}
	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) ListIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// sortResults 按距离升序排序，距离相同时按 ID 排序保证结果稳定。
func sortResults(results []*QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
}
