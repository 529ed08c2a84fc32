package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/verbatim-rag/pkg/component/sqlite"
)

const sqliteBatchSize = 200

// chunkRow 为 rag_chunks 表的一行，集合名与 ID 组成联合主键。
type chunkRow struct {
	Collection string `gorm:"primaryKey;size:128"`
	ID         string `gorm:"primaryKey;size:512"`
	Text       string `gorm:"type:text;not null"`
	Metadata   string `gorm:"type:text"`
	Dim        int    `gorm:"not null"`
	Embedding  []byte `gorm:"type:blob;not null"`
	UpdatedAt  time.Time
}

func (chunkRow) TableName() string { return "rag_chunks" }

// SQLiteStore 基于嵌入式 SQLite 的持久化向量存储。
// 检索时加载集合内全部向量并计算 L2 距离，适用于单文档规模的语料。
type SQLiteStore struct {
	client     *sqlite.Client
	db         *gorm.DB
	collection string
}

var _ VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore 创建 SQLite 存储。
func NewSQLiteStore(client *sqlite.Client, collection string) *SQLiteStore {
	return &SQLiteStore{
		client:     client,
		db:         client.DB(),
		collection: collection,
	}
}

func (s *SQLiteStore) Backend() string    { return "sqlite" }
func (s *SQLiteStore) Collection() string { return s.collection }

// EnsureCollection 迁移表结构。集合本身随首次写入出现。
func (s *SQLiteStore) EnsureCollection(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&chunkRow{}); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, records []*Record) error {
	dim, err := validateRecords(records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]*chunkRow, len(records))
	for i, r := range records {
		md, err := json.Marshal(cloneMetadata(r.Metadata))
		if err != nil {
			return fmt.Errorf("record %s: marshal metadata: %w", r.ID, err)
		}
		rows[i] = &chunkRow{
			Collection: s.collection,
			ID:         r.ID,
			Text:       r.Text,
			Metadata:   string(md),
			Dim:        dim,
			Embedding:  encodeVector(r.Embedding),
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&chunkRow{}).
			Where("collection = ? AND dim <> ?", s.collection, dim).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: collection %s holds vectors of another dimension", ErrDimensionMismatch, s.collection)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(rows, sqliteBatchSize).Error
	})
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error) {
	if topK <= 0 {
		return []*QueryResult{}, nil
	}

	var rows []chunkRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", s.collection).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	results := make([]*QueryResult, 0, len(rows))
	for _, row := range rows {
		if row.Dim != len(vector) {
			return nil, fmt.Errorf("%w: collection %d, query %d", ErrDimensionMismatch, row.Dim, len(vector))
		}
		md := map[string]any{}
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
				return nil, fmt.Errorf("record %s: decode metadata: %w", row.ID, err)
			}
		}
		results = append(results, &QueryResult{
			ID:       row.ID,
			Text:     row.Text,
			Metadata: md,
			Distance: textutil.L2Distance(vector, decodeVector(row.Embedding)),
		})
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&chunkRow{}).
		Where("collection = ?", s.collection).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += sqliteBatchSize {
		end := min(start+sqliteBatchSize, len(ids))
		if err := s.db.WithContext(ctx).
			Where("collection = ? AND id IN ?", s.collection, ids[start:end]).
			Delete(&chunkRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete ids: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&chunkRow{}).
		Where("collection = ?", s.collection).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.client.Close()
}

// encodeVector 以小端 float32 序列化向量。
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
