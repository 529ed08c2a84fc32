package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
// 集合在首次写入时按向量维度创建。
type MilvusStore struct {
	client     *milvus.Client
	collection string

	mu     sync.Mutex
	loaded bool
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, collection string) *MilvusStore {
	return &MilvusStore{client: client, collection: collection}
}

func (s *MilvusStore) Backend() string    { return "milvus" }
func (s *MilvusStore) Collection() string { return s.collection }

// EnsureCollection 加载已存在的集合；不存在时等待首次写入再创建。
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.Infow("milvus collection not found, will be created on first index", "collection", s.collection)
	}
	return nil
}

// exists 检查集合是否存在，存在时确保已加载。
func (s *MilvusStore) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return true, nil
	}
	ok, err := s.client.HasCollection(ctx, s.collection)
	if err != nil || !ok {
		return false, err
	}
	// 维度仅在创建时使用，已存在的集合直接加载
	if err := s.client.EnsureCollection(ctx, s.collection, 0); err != nil {
		return false, err
	}
	s.loaded = true
	return true, nil
}

func (s *MilvusStore) Add(ctx context.Context, records []*Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	if !s.loaded {
		if err := s.client.EnsureCollection(ctx, s.collection, dim); err != nil {
			s.mu.Unlock()
			return err
		}
		s.loaded = true
	}
	s.mu.Unlock()

	rows := make([]milvus.Row, len(records))
	for i, r := range records {
		md, err := json.Marshal(cloneMetadata(r.Metadata))
		if err != nil {
			return fmt.Errorf("record %s: marshal metadata: %w", r.ID, err)
		}
		rows[i] = milvus.Row{
			ID:        r.ID,
			Text:      r.Text,
			Metadata:  string(md),
			Embedding: r.Embedding,
		}
	}
	return s.client.Upsert(ctx, s.collection, rows)
}

func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error) {
	ok, err := s.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || topK <= 0 {
		return []*QueryResult{}, nil
	}

	hits, err := s.client.Search(ctx, s.collection, vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]*QueryResult, 0, len(hits))
	for _, h := range hits {
		md := map[string]any{}
		if h.Metadata != "" {
			if err := json.Unmarshal([]byte(h.Metadata), &md); err != nil {
				return nil, fmt.Errorf("record %s: decode metadata: %w", h.ID, err)
			}
		}
		results = append(results, &QueryResult{
			ID:       h.ID,
			Text:     h.Text,
			Metadata: md,
			Distance: float64(h.Distance),
		})
	}
	sortResults(results)
	return results, nil
}

func (s *MilvusStore) ListIDs(ctx context.Context) ([]string, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return []string{}, err
	}
	return s.client.ListIDs(ctx, s.collection)
}

func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}
	return s.client.DeleteByIDs(ctx, s.collection, ids)
}

func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return s.client.Count(ctx, s.collection)
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
