// Package memory 维护按用户隔离的长期语义记忆，为对话与内容生成提供
// 检索增强上下文。
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var ErrOwnerRequired = errors.New("memory owner id is required")

// Record 是一条长期记忆。写入后只读；检索永远限定在同一 OwnerID 内。
type Record struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"ownerId"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	Similarity float64           `json:"similarity,omitempty"`
}

// InsertParams 描述一次记忆写入。
type InsertParams struct {
	ID        string
	OwnerID   string
	Content   string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// SearchParams 描述一次近邻检索：限定所有者、相似度阈值与条数上限。
type SearchParams struct {
	OwnerID        string
	QueryEmbedding []float32
	Limit          int
	Threshold      float64
}

// Querier 是存储层需要实现的最小接口，由消费方定义以便测试替换。
// 生产实现基于 Postgres + pgvector，开发与测试使用进程内实现。
type Querier interface {
	InsertRecord(ctx context.Context, arg InsertParams) error
	SearchRecords(ctx context.Context, arg SearchParams) ([]Record, error)
}

// Embedder 产出文本向量；nil 切片表示"当前无向量可用"。
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Store links the embedder with the persistence layer. Safe for concurrent
// use; all writes are append-only.
type Store struct {
	queries  Querier
	embedder Embedder
}

// New 创建记忆存储。
func New(queries Querier, embedder Embedder) *Store {
	return &Store{queries: queries, embedder: embedder}
}

// Save 向量化并持久化一条记忆。向量化失败时跳过写入并返回 (nil, nil)：
// 该路径由后台任务触发，不重试、不阻塞调用方。
func (s *Store) Save(ctx context.Context, ownerID, content string, metadata map[string]string) (*Record, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	vector := s.embedder.Embed(ctx, content)
	if len(vector) == 0 {
		log.Printf("[memory] skipping save for owner=%s: no embedding available", ownerID)
		return nil, nil
	}

	record := Record{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	err := s.queries.InsertRecord(ctx, InsertParams{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		Content:   record.Content,
		Embedding: vector,
		Metadata:  record.Metadata,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory record: %w", err)
	}

	return &record, nil
}

// Search 返回与 query 最相似、且相似度不低于 threshold 的记忆，
// 按相似度降序、同分按时间降序。零命中是常见的正常结果。
func (s *Store) Search(ctx context.Context, ownerID, query string, limit int, threshold float64) ([]Record, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 3
	}

	vector := s.embedder.Embed(ctx, query)
	if len(vector) == 0 {
		log.Printf("[memory] search for owner=%s degraded: no query embedding", ownerID)
		return []Record{}, nil
	}

	records, err := s.queries.SearchRecords(ctx, SearchParams{
		OwnerID:        ownerID,
		QueryEmbedding: vector,
		Limit:          limit,
		Threshold:      threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search memory records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
