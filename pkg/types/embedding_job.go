package types

import (
	sq "github.com/Masterminds/squirrel"
)

type EmbeddingJobStatus string

const (
	EMBEDDING_JOB_STATUS_PENDING    = EmbeddingJobStatus("pending")
	EMBEDDING_JOB_STATUS_PROCESSING = EmbeddingJobStatus("processing")
	EMBEDDING_JOB_STATUS_COMPLETED  = EmbeddingJobStatus("completed")
	EMBEDDING_JOB_STATUS_FAILED     = EmbeddingJobStatus("failed")
)

func (s EmbeddingJobStatus) Terminal() bool {
	return s == EMBEDDING_JOB_STATUS_COMPLETED || s == EMBEDDING_JOB_STATUS_FAILED
}

// EmbeddingJob 文档向量化任务。状态机 pending -> processing -> completed|failed，
// 失败保留已完成进度，重试只处理 embedding 为空的 chunk。
type EmbeddingJob struct {
	ID              string             `json:"id" db:"id"`
	DocID           string             `json:"doc_id" db:"doc_id"`
	Status          EmbeddingJobStatus `json:"status" db:"status"`
	TotalChunks     int                `json:"total_chunks" db:"total_chunks"`
	ProcessedChunks int                `json:"processed_chunks" db:"processed_chunks"`
	ErrorDetail     string             `json:"error_detail" db:"error_detail"`
	Provider        string             `json:"provider" db:"provider"` // 实际执行 embedding 的 provider
	CreatedAt       int64              `json:"created_at" db:"created_at"`
	UpdatedAt       int64              `json:"updated_at" db:"updated_at"`
	StartedAt       int64              `json:"started_at" db:"started_at"`
	FinishedAt      int64              `json:"finished_at" db:"finished_at"`
}

type ListEmbeddingJobOptions struct {
	DocID    string
	Status   []EmbeddingJobStatus
	IdleFrom int64 // updated_at 早于该时间戳，用于捞僵死任务
}

func (opt ListEmbeddingJobOptions) Apply(query *sq.SelectBuilder) {
	if opt.DocID != "" {
		*query = query.Where(sq.Eq{"doc_id": opt.DocID})
	}
	if len(opt.Status) > 0 {
		*query = query.Where(sq.Eq{"status": opt.Status})
	}
	if opt.IdleFrom > 0 {
		*query = query.Where(sq.Lt{"updated_at": opt.IdleFrom})
	}
}
