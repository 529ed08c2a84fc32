package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/pkg/component/milvus"
	"github.com/kart-io/verbatim-rag/pkg/component/sqlite"
	storeopts "github.com/kart-io/verbatim-rag/pkg/options/store"
)

// New 按配置创建向量存储并打开集合。
func New(ctx context.Context, opts *storeopts.Options, collection string) (VectorStore, error) {
	if opts == nil {
		return nil, fmt.Errorf("store options is nil")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	var s VectorStore
	switch opts.Backend {
	case storeopts.BackendMemory:
		s = NewMemoryStore(collection)
	case storeopts.BackendSQLite:
		client, err := sqlite.NewWithContext(ctx, opts.SQLite)
		if err != nil {
			return nil, err
		}
		s = NewSQLiteStore(client, collection)
	case storeopts.BackendMilvus:
		client, err := milvus.New(ctx, opts.Milvus)
		if err != nil {
			return nil, err
		}
		s = NewMilvusStore(client, collection)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", opts.Backend)
	}

	if err := s.EnsureCollection(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	logger.Infow("vector store ready", "backend", s.Backend(), "collection", collection)
	return s, nil
}
