package sqlstore

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"

	"github.com/complypilot/complypilot/pkg/types"
)

func TestListEmbeddingJobOptions_Apply(t *testing.T) {
	query := sq.Select("id").From(types.TABLE_EMBEDDING_JOB.Name())
	opts := types.ListEmbeddingJobOptions{
		DocID:    "doc1",
		Status:   []types.EmbeddingJobStatus{types.EMBEDDING_JOB_STATUS_PROCESSING},
		IdleFrom: 1000,
	}
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	assert.NoError(t, err)
	assert.Contains(t, queryString, "doc_id =")
	assert.Contains(t, queryString, "status IN")
	assert.Contains(t, queryString, "updated_at <")
	assert.Len(t, args, 3)
}

func TestGetKnowledgeDocOptions_Apply(t *testing.T) {
	status := types.KNOWLEDGE_DOC_STATUS_ACTIVE
	query := sq.Select("id").From(types.TABLE_KNOWLEDGE_DOC.Name())
	opts := types.GetKnowledgeDocOptions{
		Category: "vat",
		Status:   &status,
		Keyword:  "filing",
	}
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	assert.NoError(t, err)
	assert.Contains(t, queryString, "category =")
	assert.Contains(t, queryString, "status =")
	assert.Contains(t, queryString, "title LIKE")
	assert.Len(t, args, 3)
}

func TestWithPagination(t *testing.T) {
	base := sq.Select("id").From("t")

	// page 0 按第一页处理，不会下溢成巨大 OFFSET
	queryString, _, err := withPagination(base, 0, 20).ToSql()
	assert.NoError(t, err)
	assert.Contains(t, queryString, "LIMIT 20")
	assert.Contains(t, queryString, "OFFSET 0")

	queryString, _, err = withPagination(base, 3, 20).ToSql()
	assert.NoError(t, err)
	assert.Contains(t, queryString, "OFFSET 40")

	queryString, _, err = withPagination(base, types.NO_PAGINATION, types.NO_PAGINATION).ToSql()
	assert.NoError(t, err)
	assert.NotContains(t, queryString, "LIMIT")
	assert.NotContains(t, queryString, "OFFSET")
}

func TestProviderConfigActivate_Queries(t *testing.T) {
	table := types.TABLE_PROVIDER_CONFIG.Name()

	clearString, clearArgs, err := clearDefaultQuery(table, 1000).ToSql()
	assert.NoError(t, err)
	assert.Contains(t, clearString, "SET is_default =")
	assert.Contains(t, clearString, "WHERE is_default =")
	assert.Len(t, clearArgs, 3)

	setString, setArgs, err := setDefaultQuery(table, "cfg1", 1000).ToSql()
	assert.NoError(t, err)
	assert.Contains(t, setString, "SET is_default =")
	assert.Contains(t, setString, "status =")
	assert.Contains(t, setString, "WHERE id =")
	assert.Contains(t, setArgs, "cfg1")
}

func TestChunkQuery_Build(t *testing.T) {
	// the similarity query orders by cos then id so identical corpora
	// always return identical ordered results
	store := NewKnowledgeChunkStore(nil)
	assert.Equal(t, "cp_knowledge_chunk", store.GetTable())
}
