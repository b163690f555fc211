package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemQuerier 是 Querier 的进程内实现：数据库未配置时的开发/测试退路，
// 用余弦相似度做线性扫描。
type MemQuerier struct {
	mu      sync.RWMutex
	records []storedRecord
}

type storedRecord struct {
	record    Record
	embedding []float32
}

// NewMemQuerier 创建空的进程内记忆后端。
func NewMemQuerier() *MemQuerier {
	return &MemQuerier{}
}

// InsertRecord 追加一条记录。
func (m *MemQuerier) InsertRecord(_ context.Context, arg InsertParams) error {
	embedding := append([]float32(nil), arg.Embedding...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, storedRecord{
		record: Record{
			ID:        arg.ID,
			OwnerID:   arg.OwnerID,
			Content:   arg.Content,
			Metadata:  arg.Metadata,
			CreatedAt: arg.CreatedAt,
		},
		embedding: embedding,
	})
	return nil
}

// SearchRecords 返回同一所有者名下、相似度达到阈值的记录。
func (m *MemQuerier) SearchRecords(_ context.Context, arg SearchParams) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Record, 0, arg.Limit)
	for _, stored := range m.records {
		if stored.record.OwnerID != arg.OwnerID {
			continue
		}
		similarity := cosineSimilarity(arg.QueryEmbedding, stored.embedding)
		if similarity < arg.Threshold {
			continue
		}
		record := stored.record
		record.Similarity = similarity
		matches = append(matches, record)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if arg.Limit > 0 && len(matches) > arg.Limit {
		matches = matches[:arg.Limit]
	}
	return matches, nil
}

// Len 返回已存储的记录数，供测试断言后台写入完成。
func (m *MemQuerier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
