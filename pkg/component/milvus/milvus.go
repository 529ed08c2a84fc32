// Package milvus wraps the Milvus SDK for chunk collections keyed by string IDs.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/verbatim-rag/pkg/options/milvus"
)

// 集合字段名。
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "text"
	FieldMetadata  = "metadata"
)

const (
	maxIDLen       = 512
	maxTextLen     = 65535
	maxMetadataLen = 4096
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection with its IVF_FLAT index if missing, then loads it.
// dim is only used when the collection has to be created.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	exists, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		if dim <= 0 {
			return fmt.Errorf("collection %s does not exist and no dimension was given", name)
		}
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("document chunks").
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxIDLen).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim))).
			WithField(entity.NewField().
				WithName(FieldText).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxTextLen)).
			WithField(entity.NewField().
				WithName(FieldMetadata).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxMetadataLen))

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(entity.L2, c.opts.NList)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Row is one entity of a chunk collection.
type Row struct {
	ID        string
	Text      string
	Metadata  string
	Embedding []float32
}

// Upsert writes rows by primary key and flushes so they are searchable immediately.
func (c *Client) Upsert(ctx context.Context, collection string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	texts := make([]string, len(rows))
	metas := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	for i, r := range rows {
		ids[i], texts[i], metas[i], vectors[i] = r.ID, r.Text, r.Metadata, r.Embedding
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldMetadata, metas),
	)
	if _, err := c.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Hit is a single search result. Distance is the L2 distance reported by Milvus.
type Hit struct {
	ID       string
	Text     string
	Metadata string
	Distance float32
}

// Search performs a vector similarity search ordered by ascending distance.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", fmt.Sprintf("%d", c.opts.NProbe)).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(FieldText, FieldMetadata))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Distance: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok {
				continue
			}
			switch col.Name() {
			case FieldText:
				hit.Text = col.Data()[i]
			case FieldMetadata:
				hit.Metadata = col.Data()[i]
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ListIDs returns every primary key in the collection.
func (c *Client) ListIDs(ctx context.Context, collection string) ([]string, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithFilter(FieldID+` != ""`).
		WithOutputFields(FieldID).
		WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	col, ok := rs.GetColumn(FieldID).(*column.ColumnVarChar)
	if !ok {
		return []string{}, nil
	}
	return col.Data(), nil
}

// DeleteByIDs deletes entities by primary key.
func (c *Client) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithStringIDs(FieldID, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// Count returns the number of live entities in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	col, ok := rs.GetColumn("count(*)").(*column.ColumnInt64)
	if !ok || col.Len() == 0 {
		return 0, nil
	}
	return col.Data()[0], nil
}
