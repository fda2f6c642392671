package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/complypilot/complypilot/pkg/register"
	"github.com/complypilot/complypilot/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.KnowledgeChunkStore = NewKnowledgeChunkStore(provider)
	})
}

type KnowledgeChunkStore struct {
	CommonFields
}

func NewKnowledgeChunkStore(provider SqlProviderAchieve) *KnowledgeChunkStore {
	repo := &KnowledgeChunkStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_KNOWLEDGE_CHUNK)
	repo.SetAllColumns("id", "doc_id", "chunk_index", "chunk", "token_count", "embedding", "created_at", "updated_at")
	return repo
}

func (s *KnowledgeChunkStore) BatchCreate(ctx context.Context, datas []*types.KnowledgeChunk) error {
	if len(datas) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "doc_id", "chunk_index", "chunk", "token_count", "created_at", "updated_at")

	now := time.Now().Unix()
	for _, data := range datas {
		if data.CreatedAt == 0 {
			data.CreatedAt = now
		}
		if data.UpdatedAt == 0 {
			data.UpdatedAt = now
		}
		query = query.Values(data.ID, data.DocID, data.ChunkIndex, data.Chunk, data.TokenCount, data.CreatedAt, data.UpdatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *KnowledgeChunkStore) List(ctx context.Context, docID string) ([]types.KnowledgeChunk, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"doc_id": docID}).OrderBy("chunk_index ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.KnowledgeChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *KnowledgeChunkStore) ListUnembedded(ctx context.Context, docID string, limit uint64) ([]types.KnowledgeChunk, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"doc_id": docID}).
		Where("embedding IS NULL").
		OrderBy("chunk_index ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.KnowledgeChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *KnowledgeChunkStore) UpdateEmbedding(ctx context.Context, id string, vector pgvector.Vector) error {
	query := sq.Update(s.GetTable()).
		Set("embedding", vector).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *KnowledgeChunkStore) ResetEmbeddings(ctx context.Context, docID string) error {
	query := sq.Update(s.GetTable()).
		Set("embedding", nil).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"doc_id": docID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *KnowledgeChunkStore) DeleteByDoc(ctx context.Context, docID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"doc_id": docID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *KnowledgeChunkStore) CountByDoc(ctx context.Context, docID string) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"doc_id": docID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var res int64
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return 0, err
	}
	return res, nil
}

// Query 余弦相似度检索。
// pgvector supported distance functions are:
// <-> - L2 distance
// <#> - (negative) inner product
// <=> - cosine distance
func (s *KnowledgeChunkStore) Query(ctx context.Context, vector pgvector.Vector, topK uint64, threshold float64) ([]types.ChunkQueryResult, error) {
	cosColumn, vectorArgs, _ := sq.Expr("1 - (c.embedding <=> ?) as cos", vector).ToSql()
	query := sq.Select("c.id", "c.doc_id", "c.chunk_index", "c.chunk", "c.token_count", cosColumn).
		From(s.GetTable()+" c").
		Join(types.TABLE_KNOWLEDGE_DOC.Name()+" d ON d.id = c.doc_id").
		Where(sq.Eq{"d.status": types.KNOWLEDGE_DOC_STATUS_ACTIVE}).
		Where("c.embedding IS NOT NULL").
		OrderBy("cos DESC", "c.id ASC").
		Limit(topK)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(vectorArgs, args...)

	var res []types.ChunkQueryResult
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}

	// 阈值过滤放在应用层，避免 select 别名在 WHERE 里不可用的问题
	filtered := res[:0]
	for _, item := range res {
		if item.Cos >= threshold {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
