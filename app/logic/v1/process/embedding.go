package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/app/store"
	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
)

// processJob 执行单个向量化任务。doc 级 redis 锁保证同一文档
// 不会被多个 worker 同时处理；失败保留进度，重试只补缺。
func (p *Process) processJob(jobID string) error {
	ctx := p.ctx

	job, err := p.core.Store().EmbeddingJobStore().Get(ctx, jobID)
	if err != nil {
		return errors.New("process.processJob.EmbeddingJobStore.Get", errors.ERROR_INTERNAL, err)
	}
	if job.Status.Terminal() {
		return nil
	}

	lockKey := fmt.Sprintf("ingest:doc:%s", job.DocID)
	locked, err := p.core.TryLock(ctx, lockKey)
	if err != nil {
		return errors.New("process.processJob.TryLock", errors.ERROR_INTERNAL, err)
	}
	if !locked {
		return nil
	}
	defer p.core.ReleaseLock(ctx, lockKey)

	snapshot, err := p.core.Srv().AI().Resolve(ctx)
	if err != nil {
		// 没有可用 provider 属配置问题，等不来自愈，直接判死
		return p.failJob(jobID, fmt.Sprintf("resolve provider: %s", err.Error()))
	}
	provider := snapshot.EmbedConfig.Provider

	if job.Status == types.EMBEDDING_JOB_STATUS_PENDING {
		ok, err := p.core.Store().EmbeddingJobStore().MarkProcessing(ctx, jobID, provider)
		if err != nil {
			return errors.New("process.processJob.MarkProcessing", errors.ERROR_INTERNAL, err)
		}
		if !ok {
			return nil
		}
	} else if err = p.core.Store().EmbeddingJobStore().Touch(ctx, jobID); err != nil {
		// 续跑僵死任务前先刷新活跃时间，避免 sweeper 重复入队
		return errors.New("process.processJob.Touch", errors.ERROR_INTERNAL, err)
	}

	doc, err := p.core.Store().KnowledgeDocStore().Get(ctx, job.DocID)
	if err != nil {
		return p.failJob(jobID, fmt.Sprintf("load document: %s", err.Error()))
	}
	if doc.Status != types.KNOWLEDGE_DOC_STATUS_ACTIVE {
		return p.failJob(jobID, "document deactivated")
	}

	outcome, detail, err := embedChunks(ctx, embedSource{
		jobs:   p.core.Store().EmbeddingJobStore(),
		chunks: p.core.Store().KnowledgeChunkStore(),
		embed: meteredEmbedder{
			EmbeddingCapable: snapshot.Embed,
			metrics:          p.core.Metrics(),
			provider:         provider,
		},
		limiter:      p.limiter,
		batchSize:    uint64(p.core.Cfg().Ingestion.GetBatchSize()),
		embeddingDim: snapshot.EmbedConfig.EmbeddingDim,
		onBatchDone: func(n int) {
			p.core.Metrics().IngestionChunksInc("embedded", n)
		},
		onBatchFailed: func(n int) {
			p.core.Metrics().IngestionChunksInc("failed", n)
		},
	}, jobID, doc)
	if err != nil {
		return err
	}

	switch outcome {
	case embedFailed:
		return p.failJob(jobID, detail)
	case embedInterrupted:
		// 停机或取消，任务状态交给 sweeper 或取消方处理
		return nil
	}

	if err = p.core.Store().EmbeddingJobStore().Finish(ctx, jobID, types.EMBEDDING_JOB_STATUS_COMPLETED, ""); err != nil {
		return errors.New("process.processJob.Finish", errors.ERROR_INTERNAL, err)
	}
	slog.Info("embedding job completed", slog.String("job_id", jobID), slog.String("doc_id", job.DocID))
	return nil
}

type embedOutcome int

const (
	embedCompleted embedOutcome = iota
	embedFailed
	embedInterrupted
)

// embedSource 批处理的依赖面，worker 与测试共用
type embedSource struct {
	jobs         store.EmbeddingJobStore
	chunks       store.KnowledgeChunkStore
	embed        ai.EmbeddingCapable
	limiter      *rate.Limiter
	batchSize    uint64
	embeddingDim int

	onBatchDone   func(n int)
	onBatchFailed func(n int)
}

// meteredEmbedder 在向量化调用外圈记录时延与错误数
type meteredEmbedder struct {
	ai.EmbeddingCapable
	metrics  *core.Metrics
	provider string
}

func (m meteredEmbedder) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	timer := m.metrics.ProviderRequestTimer(m.provider, "embedding")
	result, err := m.EmbeddingCapable.EmbeddingForDocument(ctx, title, content)
	timer.ObserveDuration()
	if err != nil {
		m.metrics.ProviderErrorInc(m.provider, "embedding")
	}
	return result, err
}

// embedChunks 逐批向量化文档。批间重读任务状态，终态立即停手，
// 已写入的向量一律保留；失败返回原因由调用方落到任务上。
func embedChunks(ctx context.Context, src embedSource, jobID string, doc *types.KnowledgeDoc) (embedOutcome, string, error) {
	for {
		if ctx.Err() != nil {
			// 停机中断，任务停在 processing，重启后由 sweeper 处理
			return embedInterrupted, "", nil
		}

		// 批间检查取消，已写入的向量保留
		current, err := src.jobs.Get(ctx, jobID)
		if err != nil {
			return embedInterrupted, "", errors.New("process.embedChunks.Get", errors.ERROR_INTERNAL, err)
		}
		if current.Status.Terminal() {
			return embedInterrupted, "", nil
		}

		batch, err := src.chunks.ListUnembedded(ctx, doc.ID, src.batchSize)
		if err != nil {
			return embedInterrupted, "", errors.New("process.embedChunks.ListUnembedded", errors.ERROR_INTERNAL, err)
		}
		if len(batch) == 0 {
			return embedCompleted, "", nil
		}

		if src.limiter != nil {
			if err = src.limiter.Wait(ctx); err != nil {
				return embedInterrupted, "", nil
			}
		}

		texts := lo.Map(batch, func(item types.KnowledgeChunk, _ int) string {
			return item.Chunk
		})

		result, err := src.embed.EmbeddingForDocument(ctx, doc.Title, texts)
		if err != nil {
			if src.onBatchFailed != nil {
				src.onBatchFailed(len(batch))
			}
			return embedFailed, fmt.Sprintf("embedding request: %s", err.Error()), nil
		}
		if len(result.Data) != len(batch) {
			return embedFailed, fmt.Sprintf("embedding count mismatch: want %d got %d", len(batch), len(result.Data)), nil
		}
		if dim := src.embeddingDim; dim > 0 && len(result.Data[0]) != dim {
			return embedFailed, fmt.Sprintf("embedding dim mismatch: want %d got %d", dim, len(result.Data[0])), nil
		}

		for i, chunk := range batch {
			if err = src.chunks.UpdateEmbedding(ctx, chunk.ID, pgvector.NewVector(result.Data[i])); err != nil {
				return embedFailed, fmt.Sprintf("store embedding: %s", err.Error()), nil
			}
		}

		if err = src.jobs.IncrProcessed(ctx, jobID, len(batch)); err != nil {
			return embedInterrupted, "", errors.New("process.embedChunks.IncrProcessed", errors.ERROR_INTERNAL, err)
		}
		if src.onBatchDone != nil {
			src.onBatchDone(len(batch))
		}
	}
}

func (p *Process) failJob(jobID, detail string) error {
	p.core.Metrics().IngestionJobFailureInc()
	if err := p.core.Store().EmbeddingJobStore().Finish(p.ctx, jobID, types.EMBEDDING_JOB_STATUS_FAILED, detail); err != nil {
		return errors.New("process.failJob.Finish", errors.ERROR_INTERNAL, err)
	}
	slog.Warn("embedding job failed", slog.String("job_id", jobID), slog.String("detail", detail))
	return nil
}

// sweepJobs 兜底两类任务：停在 pending 超过一分钟的重新入队
// （队列溢出或进程重启丢单），长时间无进度的 processing 判死，
// 进度保留，管理员重提 reprocess 即可续跑。
func (p *Process) sweepJobs() {
	ctx := p.ctx
	now := time.Now()

	pending, err := p.core.Store().EmbeddingJobStore().List(ctx, types.ListEmbeddingJobOptions{
		Status:   []types.EmbeddingJobStatus{types.EMBEDDING_JOB_STATUS_PENDING},
		IdleFrom: now.Add(-time.Minute).Unix(),
	}, types.NO_PAGINATION, types.NO_PAGINATION)
	if err != nil {
		slog.Error("sweep pending jobs failed", slog.String("error", err.Error()))
		return
	}
	for _, job := range pending {
		Enqueue(job.ID)
	}

	stallBefore := now.Add(-time.Duration(p.core.Cfg().Ingestion.GetStallSeconds()) * time.Second).Unix()
	stalled, err := p.core.Store().EmbeddingJobStore().List(ctx, types.ListEmbeddingJobOptions{
		Status:   []types.EmbeddingJobStatus{types.EMBEDDING_JOB_STATUS_PROCESSING},
		IdleFrom: stallBefore,
	}, types.NO_PAGINATION, types.NO_PAGINATION)
	if err != nil {
		slog.Error("sweep stalled jobs failed", slog.String("error", err.Error()))
		return
	}
	for _, job := range stalled {
		if err := p.failJob(job.ID, "stalled"); err != nil {
			slog.Error("mark stalled job failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}
}
