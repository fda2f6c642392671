package types

import (
	"github.com/pgvector/pgvector-go"
)

// KnowledgeChunk 文档切片。embedding 为 NULL 表示尚未向量化，
// 向量写入是单行 UPDATE，读写并发安全。
type KnowledgeChunk struct {
	ID         string           `json:"id" db:"id"`
	DocID      string           `json:"doc_id" db:"doc_id"`
	ChunkIndex int              `json:"chunk_index" db:"chunk_index"` // 文档内从 0 开始连续编号
	Chunk      string           `json:"chunk" db:"chunk"`
	TokenCount int              `json:"token_count" db:"token_count"`
	Embedding  *pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt  int64            `json:"created_at" db:"created_at"`
	UpdatedAt  int64            `json:"updated_at" db:"updated_at"`
}

// ChunkQueryResult 向量检索结果，Cos 为余弦相似度
type ChunkQueryResult struct {
	ID         string  `json:"id" db:"id"`
	DocID      string  `json:"doc_id" db:"doc_id"`
	ChunkIndex int     `json:"chunk_index" db:"chunk_index"`
	Chunk      string  `json:"chunk" db:"chunk"`
	TokenCount int     `json:"token_count" db:"token_count"`
	Cos        float64 `json:"cos" db:"cos"`
}
