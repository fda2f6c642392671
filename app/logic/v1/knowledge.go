package v1

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/app/logic/v1/process"
	"github.com/complypilot/complypilot/pkg/chunker"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

type KnowledgeLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewKnowledgeLogic(ctx context.Context, core *core.Core) *KnowledgeLogic {
	return &KnowledgeLogic{
		ctx:  ctx,
		core: core,
	}
}

type CreateDocumentArgs struct {
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// CreateDocument 落库文档并同步切片，向量化交给异步任务。
// 空内容切不出 chunk 时任务直接置为 completed。
func (l *KnowledgeLogic) CreateDocument(args CreateDocumentArgs) (*types.KnowledgeDoc, *types.EmbeddingJob, error) {
	if strings.TrimSpace(args.Title) == "" || strings.TrimSpace(args.Content) == "" {
		return nil, nil, errors.New("KnowledgeLogic.CreateDocument.check", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	now := time.Now().Unix()
	doc := types.KnowledgeDoc{
		ID:        utils.GenUniqIDStr(),
		Title:     args.Title,
		Content:   args.Content,
		Category:  args.Category,
		Tags:      args.Tags,
		Status:    types.KNOWLEDGE_DOC_STATUS_ACTIVE,
		CreatedAt: now,
		UpdatedAt: now,
	}

	chunks := l.core.Chunker().Split(args.Content)
	job := types.EmbeddingJob{
		ID:          utils.GenUniqIDStr(),
		DocID:       doc.ID,
		Status:      types.EMBEDDING_JOB_STATUS_PENDING,
		TotalChunks: len(chunks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(chunks) == 0 {
		job.Status = types.EMBEDDING_JOB_STATUS_COMPLETED
		job.FinishedAt = now
	}

	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().KnowledgeDocStore().Create(ctx, doc); err != nil {
			return errors.New("KnowledgeLogic.CreateDocument.KnowledgeDocStore.Create", errors.ERROR_INTERNAL, err)
		}

		if len(chunks) > 0 {
			rows := lo.Map(chunks, func(item chunker.Chunk, _ int) *types.KnowledgeChunk {
				return &types.KnowledgeChunk{
					ID:         utils.GenUniqIDStr(),
					DocID:      doc.ID,
					ChunkIndex: item.Index,
					Chunk:      item.Text,
					TokenCount: item.TokenCount,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
			})
			if err := l.core.Store().KnowledgeChunkStore().BatchCreate(ctx, rows); err != nil {
				return errors.New("KnowledgeLogic.CreateDocument.KnowledgeChunkStore.BatchCreate", errors.ERROR_INTERNAL, err)
			}
		}

		if err := l.core.Store().EmbeddingJobStore().Create(ctx, job); err != nil {
			return errors.New("KnowledgeLogic.CreateDocument.EmbeddingJobStore.Create", errors.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if job.Status == types.EMBEDDING_JOB_STATUS_PENDING {
		process.Enqueue(job.ID)
	}
	return &doc, &job, nil
}

func (l *KnowledgeLogic) GetDocument(id string) (*types.KnowledgeDoc, error) {
	doc, err := l.core.Store().KnowledgeDocStore().Get(l.ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("KnowledgeLogic.GetDocument.KnowledgeDocStore.Get", errors.ERROR_NOTFOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("KnowledgeLogic.GetDocument.KnowledgeDocStore.Get", errors.ERROR_INTERNAL, err)
	}
	return doc, nil
}

func (l *KnowledgeLogic) ListDocuments(opts types.GetKnowledgeDocOptions, page, pageSize uint64) ([]types.KnowledgeDoc, int64, error) {
	list, err := l.core.Store().KnowledgeDocStore().List(l.ctx, opts, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, errors.New("KnowledgeLogic.ListDocuments.KnowledgeDocStore.List", errors.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().KnowledgeDocStore().Total(l.ctx, opts)
	if err != nil {
		return nil, 0, errors.New("KnowledgeLogic.ListDocuments.KnowledgeDocStore.Total", errors.ERROR_INTERNAL, err)
	}
	return list, total, nil
}

// DeleteDocument 软下线，chunk 保留但不再参与检索
func (l *KnowledgeLogic) DeleteDocument(id string) error {
	if _, err := l.GetDocument(id); err != nil {
		return errors.Trace("KnowledgeLogic.DeleteDocument", err)
	}

	if err := l.core.Store().KnowledgeDocStore().UpdateStatus(l.ctx, id, types.KNOWLEDGE_DOC_STATUS_INACTIVE); err != nil {
		return errors.New("KnowledgeLogic.DeleteDocument.UpdateStatus", errors.ERROR_INTERNAL, err)
	}
	return nil
}

func (l *KnowledgeLogic) GetJobStatus(jobID string) (*types.EmbeddingJob, error) {
	job, err := l.core.Store().EmbeddingJobStore().Get(l.ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("KnowledgeLogic.GetJobStatus.EmbeddingJobStore.Get", errors.ERROR_NOTFOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("KnowledgeLogic.GetJobStatus.EmbeddingJobStore.Get", errors.ERROR_INTERNAL, err)
	}
	return job, nil
}

// CancelJob 取消排队或进行中的任务，已写入的向量保留。
// worker 在批间感知终态并停手。
func (l *KnowledgeLogic) CancelJob(jobID string) (*types.EmbeddingJob, error) {
	if _, err := l.GetJobStatus(jobID); err != nil {
		return nil, errors.Trace("KnowledgeLogic.CancelJob", err)
	}

	ok, err := l.core.Store().EmbeddingJobStore().Cancel(l.ctx, jobID, "cancelled")
	if err != nil {
		return nil, errors.New("KnowledgeLogic.CancelJob.Cancel", errors.ERROR_INTERNAL, err)
	}
	if !ok {
		return nil, errors.New("KnowledgeLogic.CancelJob.terminal", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	return l.GetJobStatus(jobID)
}

// ReprocessDocument 重建文档向量。reset 为 true 时清空已有向量全量重算，
// 否则只补 embedding 为空的 chunk。已有进行中任务时拒绝。
func (l *KnowledgeLogic) ReprocessDocument(docID string, reset bool) (*types.EmbeddingJob, error) {
	doc, err := l.GetDocument(docID)
	if err != nil {
		return nil, errors.Trace("KnowledgeLogic.ReprocessDocument", err)
	}
	if doc.Status != types.KNOWLEDGE_DOC_STATUS_ACTIVE {
		return nil, errors.New("KnowledgeLogic.ReprocessDocument.status", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	running, err := l.core.Store().EmbeddingJobStore().List(l.ctx, types.ListEmbeddingJobOptions{
		DocID:  docID,
		Status: []types.EmbeddingJobStatus{types.EMBEDDING_JOB_STATUS_PENDING, types.EMBEDDING_JOB_STATUS_PROCESSING},
	}, types.NO_PAGINATION, types.NO_PAGINATION)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("KnowledgeLogic.ReprocessDocument.EmbeddingJobStore.List", errors.ERROR_INTERNAL, err)
	}
	if len(running) > 0 {
		return nil, errors.New("KnowledgeLogic.ReprocessDocument.running", errors.ERROR_EXIST, nil).Code(http.StatusConflict)
	}

	now := time.Now().Unix()
	job := types.EmbeddingJob{
		ID:        utils.GenUniqIDStr(),
		DocID:     docID,
		Status:    types.EMBEDDING_JOB_STATUS_PENDING,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if reset {
			if err := l.core.Store().KnowledgeChunkStore().ResetEmbeddings(ctx, docID); err != nil {
				return errors.New("KnowledgeLogic.ReprocessDocument.ResetEmbeddings", errors.ERROR_INTERNAL, err)
			}
		}

		// 任务量按待处理的 chunk 数计，增量重算不会虚报进度
		pending, err := l.core.Store().KnowledgeChunkStore().ListUnembedded(ctx, docID, 0)
		if err != nil && err != sql.ErrNoRows {
			return errors.New("KnowledgeLogic.ReprocessDocument.ListUnembedded", errors.ERROR_INTERNAL, err)
		}
		job.TotalChunks = len(pending)
		if job.TotalChunks == 0 {
			job.Status = types.EMBEDDING_JOB_STATUS_COMPLETED
			job.FinishedAt = now
		}

		if err := l.core.Store().EmbeddingJobStore().Create(ctx, job); err != nil {
			return errors.New("KnowledgeLogic.ReprocessDocument.EmbeddingJobStore.Create", errors.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if job.Status == types.EMBEDDING_JOB_STATUS_PENDING {
		process.Enqueue(job.ID)
	}
	return &job, nil
}
