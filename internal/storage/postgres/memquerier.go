package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/omnimind/omnimind-engine/internal/memory"
)

// MemoryQuerier 是记忆存储的 pgvector 实现。相似度为余弦相似度
// (1 - 余弦距离)，检索永远带 owner 过滤。
type MemoryQuerier struct {
	pool *pgxpool.Pool
}

// NewMemoryQuerier 创建向量检索后端。
func NewMemoryQuerier(pool *pgxpool.Pool) *MemoryQuerier {
	return &MemoryQuerier{pool: pool}
}

func (q *MemoryQuerier) InsertRecord(ctx context.Context, arg memory.InsertParams) error {
	metadata := arg.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := q.pool.Exec(ctx,
		`INSERT INTO memories (id, owner_id, content, embedding, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		arg.ID, arg.OwnerID, arg.Content, pgvector.NewVector(arg.Embedding), metadata, arg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (q *MemoryQuerier) SearchRecords(ctx context.Context, arg memory.SearchParams) ([]memory.Record, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, owner_id, content, metadata, created_at, 1 - (embedding <=> $2) AS similarity
		 FROM memories
		 WHERE owner_id = $1 AND 1 - (embedding <=> $2) >= $3
		 ORDER BY embedding <=> $2, created_at DESC
		 LIMIT $4`,
		arg.OwnerID, pgvector.NewVector(arg.QueryEmbedding), arg.Threshold, arg.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	records := make([]memory.Record, 0, arg.Limit)
	for rows.Next() {
		var record memory.Record
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.Content, &record.Metadata,
			&record.CreatedAt, &record.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memories: %w", err)
	}
	return records, nil
}
