package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/complypilot/complypilot/pkg/register"
	"github.com/complypilot/complypilot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.EmbeddingJobStore = NewEmbeddingJobStore(provider)
	})
}

type EmbeddingJobStore struct {
	CommonFields
}

func NewEmbeddingJobStore(provider SqlProviderAchieve) *EmbeddingJobStore {
	repo := &EmbeddingJobStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_EMBEDDING_JOB)
	repo.SetAllColumns("id", "doc_id", "status", "total_chunks", "processed_chunks", "error_detail",
		"provider", "created_at", "updated_at", "started_at", "finished_at")
	return repo
}

func (s *EmbeddingJobStore) Create(ctx context.Context, data types.EmbeddingJob) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = time.Now().Unix()
	}
	if data.Status == "" {
		data.Status = types.EMBEDDING_JOB_STATUS_PENDING
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.DocID, data.Status, data.TotalChunks, data.ProcessedChunks, data.ErrorDetail,
			data.Provider, data.CreatedAt, data.UpdatedAt, data.StartedAt, data.FinishedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *EmbeddingJobStore) Get(ctx context.Context, id string) (*types.EmbeddingJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.EmbeddingJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *EmbeddingJobStore) List(ctx context.Context, opts types.ListEmbeddingJobOptions, page, pageSize uint64) ([]types.EmbeddingJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	query = withPagination(query, page, pageSize)
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.EmbeddingJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkProcessing CAS 抢占，pending -> processing
func (s *EmbeddingJobStore) MarkProcessing(ctx context.Context, id, provider string) (bool, error) {
	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("status", types.EMBEDDING_JOB_STATUS_PROCESSING).
		Set("provider", provider).
		Set("started_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": types.EMBEDDING_JOB_STATUS_PENDING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *EmbeddingJobStore) IncrProcessed(ctx context.Context, id string, delta int) error {
	query := sq.Update(s.GetTable()).
		Set("processed_chunks", sq.Expr("LEAST(processed_chunks + ?, total_chunks)", delta)).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Finish 终态只进不出，已取消或已完成的任务不会被覆盖
func (s *EmbeddingJobStore) Finish(ctx context.Context, id string, status types.EmbeddingJobStatus, errorDetail string) error {
	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("error_detail", errorDetail).
		Set("finished_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": []types.EmbeddingJobStatus{
			types.EMBEDDING_JOB_STATUS_PENDING, types.EMBEDDING_JOB_STATUS_PROCESSING,
		}})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Cancel 终态任务不可取消，返回是否真的取消了
func (s *EmbeddingJobStore) Cancel(ctx context.Context, id, reason string) (bool, error) {
	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("status", types.EMBEDDING_JOB_STATUS_FAILED).
		Set("error_detail", reason).
		Set("finished_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": []types.EmbeddingJobStatus{
			types.EMBEDDING_JOB_STATUS_PENDING, types.EMBEDDING_JOB_STATUS_PROCESSING,
		}})

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Touch 推进 updated_at，向僵死扫描器表明任务仍在推进
func (s *EmbeddingJobStore) Touch(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
