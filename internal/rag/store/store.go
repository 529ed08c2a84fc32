package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch 向量维度与集合不一致。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Record 表示一条待写入的向量记录。
type Record struct {
	// ID 记录 ID，重复写入时覆盖。
	ID string
	// Text 原始文本。
	Text string
	// Metadata 附加元数据。
	Metadata map[string]any
	// Embedding 嵌入向量。
	Embedding []float32
}

// QueryResult 表示一条检索结果。
type QueryResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	// Distance 与查询向量的平方 L2 距离，越小越相近。
	Distance float64 `json:"distance"`
}

// VectorStore 定义向量存储接口。实现需保证并发读安全。
type VectorStore interface {
	// Backend 返回后端名称。
	Backend() string

	// Collection 返回绑定的集合名称。
	Collection() string

	// EnsureCollection 创建或打开集合。
	EnsureCollection(ctx context.Context) error

	// Add 批量写入记录，ID 已存在时覆盖。
	Add(ctx context.Context, records []*Record) error

	// Query 返回与 vector 最近的 topK 条记录，按距离升序排列。
	// 集合为空时返回空切片。
	Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error)

	// ListIDs 返回集合中全部记录 ID。
	ListIDs(ctx context.Context) ([]string, error)

	// Delete 按 ID 删除记录。
	Delete(ctx context.Context, ids []string) error

	// Count 返回记录数量。
	Count(ctx context.Context) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}

func validateRecords(records []*Record) (int, error) {
	dim := 0
	for i, r := range records {
		if r == nil || r.ID == "" {
			return 0, fmt.Errorf("record %d: id is required", i)
		}
		if len(r.Embedding) == 0 {
			return 0, fmt.Errorf("record %s: embedding is empty", r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		} else if len(r.Embedding) != dim {
			return 0, fmt.Errorf("record %s: %w: %d != %d", r.ID, ErrDimensionMismatch, len(r.Embedding), dim)
		}
	}
	return dim, nil
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
