package process

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/types"
)

type fakeJobStore struct {
	mu  sync.Mutex
	job types.EmbeddingJob
}

func (s *fakeJobStore) GetTable(key ...interface{}) string { return "fake" }

func (s *fakeJobStore) Create(ctx context.Context, data types.EmbeddingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = data
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*types.EmbeddingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.job
	return &job, nil
}

func (s *fakeJobStore) List(ctx context.Context, opts types.ListEmbeddingJobOptions, page, pageSize uint64) ([]types.EmbeddingJob, error) {
	return nil, nil
}

func (s *fakeJobStore) MarkProcessing(ctx context.Context, id, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status != types.EMBEDDING_JOB_STATUS_PENDING {
		return false, nil
	}
	s.job.Status = types.EMBEDDING_JOB_STATUS_PROCESSING
	s.job.Provider = provider
	return true, nil
}

func (s *fakeJobStore) IncrProcessed(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.ProcessedChunks += delta
	if s.job.ProcessedChunks > s.job.TotalChunks {
		s.job.ProcessedChunks = s.job.TotalChunks
	}
	return nil
}

func (s *fakeJobStore) Finish(ctx context.Context, id string, status types.EmbeddingJobStatus, errorDetail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status.Terminal() {
		return nil
	}
	s.job.Status = status
	s.job.ErrorDetail = errorDetail
	return nil
}

func (s *fakeJobStore) Cancel(ctx context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status.Terminal() {
		return false, nil
	}
	s.job.Status = types.EMBEDDING_JOB_STATUS_FAILED
	s.job.ErrorDetail = reason
	return true, nil
}

func (s *fakeJobStore) Touch(ctx context.Context, id string) error { return nil }

func (s *fakeJobStore) snapshot() types.EmbeddingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

type fakeChunkStore struct {
	mu     sync.Mutex
	chunks []types.KnowledgeChunk
}

func (s *fakeChunkStore) GetTable(key ...interface{}) string { return "fake" }

func (s *fakeChunkStore) BatchCreate(ctx context.Context, datas []*types.KnowledgeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, data := range datas {
		s.chunks = append(s.chunks, *data)
	}
	return nil
}

func (s *fakeChunkStore) List(ctx context.Context, docID string) ([]types.KnowledgeChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.KnowledgeChunk(nil), s.chunks...), nil
}

func (s *fakeChunkStore) ListUnembedded(ctx context.Context, docID string, limit uint64) ([]types.KnowledgeChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []types.KnowledgeChunk
	for _, chunk := range s.chunks {
		if chunk.DocID == docID && chunk.Embedding == nil {
			res = append(res, chunk)
		}
		if uint64(len(res)) == limit {
			break
		}
	}
	return res, nil
}

func (s *fakeChunkStore) UpdateEmbedding(ctx context.Context, id string, vector pgvector.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chunks {
		if s.chunks[i].ID == id {
			v := vector
			s.chunks[i].Embedding = &v
		}
	}
	return nil
}

func (s *fakeChunkStore) ResetEmbeddings(ctx context.Context, docID string) error { return nil }
func (s *fakeChunkStore) DeleteByDoc(ctx context.Context, docID string) error     { return nil }

func (s *fakeChunkStore) CountByDoc(ctx context.Context, docID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.chunks)), nil
}

func (s *fakeChunkStore) Query(ctx context.Context, vector pgvector.Vector, topK uint64, threshold float64) ([]types.ChunkQueryResult, error) {
	return nil, nil
}

func (s *fakeChunkStore) embeddedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, chunk := range s.chunks {
		if chunk.Embedding != nil {
			n++
		}
	}
	return n
}

type fakeEmbedder struct {
	calls     int
	failAt    int // 第 n 次调用返回错误，0 表示不失败
	dim       int
	afterCall func()
}

func (f *fakeEmbedder) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return ai.EmbeddingResult{}, nil
}

func (f *fakeEmbedder) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return ai.EmbeddingResult{}, fmt.Errorf("rate limited")
	}
	data := make([][]float32, len(content))
	for i := range data {
		data[i] = make([]float32, f.dim)
	}
	if f.afterCall != nil {
		f.afterCall()
	}
	return ai.EmbeddingResult{Data: data}, nil
}

func newTestChunks(docID string, n int) []types.KnowledgeChunk {
	chunks := make([]types.KnowledgeChunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, types.KnowledgeChunk{
			ID:         fmt.Sprintf("c%d", i),
			DocID:      docID,
			ChunkIndex: i,
			Chunk:      fmt.Sprintf("chunk %d", i),
		})
	}
	return chunks
}

func TestEmbedChunks_Completes(t *testing.T) {
	jobs := &fakeJobStore{job: types.EmbeddingJob{
		ID: "j1", DocID: "d1",
		Status:      types.EMBEDDING_JOB_STATUS_PROCESSING,
		TotalChunks: 4,
	}}
	chunks := &fakeChunkStore{chunks: newTestChunks("d1", 4)}
	embedder := &fakeEmbedder{dim: 3}

	outcome, detail, err := embedChunks(context.Background(), embedSource{
		jobs:         jobs,
		chunks:       chunks,
		embed:        embedder,
		batchSize:    3,
		embeddingDim: 3,
	}, "j1", &types.KnowledgeDoc{ID: "d1", Title: "doc"})
	require.NoError(t, err)

	assert.Equal(t, embedCompleted, outcome)
	assert.Empty(t, detail)
	assert.Equal(t, 2, embedder.calls)
	assert.Equal(t, 4, chunks.embeddedCount())

	job := jobs.snapshot()
	assert.Equal(t, 4, job.ProcessedChunks)
	assert.LessOrEqual(t, job.ProcessedChunks, job.TotalChunks)
}

func TestEmbedChunks_FailureKeepsProgress(t *testing.T) {
	jobs := &fakeJobStore{job: types.EmbeddingJob{
		ID: "j1", DocID: "d1",
		Status:      types.EMBEDDING_JOB_STATUS_PROCESSING,
		TotalChunks: 4,
	}}
	chunks := &fakeChunkStore{chunks: newTestChunks("d1", 4)}
	embedder := &fakeEmbedder{dim: 3, failAt: 2}

	var failedChunks int
	outcome, detail, err := embedChunks(context.Background(), embedSource{
		jobs:         jobs,
		chunks:       chunks,
		embed:        embedder,
		batchSize:    2,
		embeddingDim: 3,
		onBatchFailed: func(n int) {
			failedChunks += n
		},
	}, "j1", &types.KnowledgeDoc{ID: "d1", Title: "doc"})
	require.NoError(t, err)

	assert.Equal(t, embedFailed, outcome)
	assert.Contains(t, detail, "embedding request")
	assert.Equal(t, 2, failedChunks)

	// 第一批写入的向量保留，进度不回退也不超总数
	assert.Equal(t, 2, chunks.embeddedCount())
	job := jobs.snapshot()
	assert.Equal(t, 2, job.ProcessedChunks)
	assert.LessOrEqual(t, job.ProcessedChunks, job.TotalChunks)
}

func TestEmbedChunks_CancelBetweenBatches(t *testing.T) {
	jobs := &fakeJobStore{job: types.EmbeddingJob{
		ID: "j1", DocID: "d1",
		Status:      types.EMBEDDING_JOB_STATUS_PROCESSING,
		TotalChunks: 4,
	}}
	chunks := &fakeChunkStore{chunks: newTestChunks("d1", 4)}
	embedder := &fakeEmbedder{dim: 3}
	embedder.afterCall = func() {
		ok, err := jobs.Cancel(context.Background(), "j1", "cancelled by admin")
		require.NoError(t, err)
		require.True(t, ok)
	}

	outcome, _, err := embedChunks(context.Background(), embedSource{
		jobs:         jobs,
		chunks:       chunks,
		embed:        embedder,
		batchSize:    2,
		embeddingDim: 3,
	}, "j1", &types.KnowledgeDoc{ID: "d1", Title: "doc"})
	require.NoError(t, err)

	assert.Equal(t, embedInterrupted, outcome)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 2, chunks.embeddedCount())

	// 取消后的终态不再被覆盖
	require.NoError(t, jobs.Finish(context.Background(), "j1", types.EMBEDDING_JOB_STATUS_COMPLETED, ""))
	job := jobs.snapshot()
	assert.Equal(t, types.EMBEDDING_JOB_STATUS_FAILED, job.Status)
	assert.Equal(t, "cancelled by admin", job.ErrorDetail)
}

func TestEmbedChunks_DimMismatchFails(t *testing.T) {
	jobs := &fakeJobStore{job: types.EmbeddingJob{
		ID: "j1", DocID: "d1",
		Status:      types.EMBEDDING_JOB_STATUS_PROCESSING,
		TotalChunks: 2,
	}}
	chunks := &fakeChunkStore{chunks: newTestChunks("d1", 2)}
	embedder := &fakeEmbedder{dim: 5}

	outcome, detail, err := embedChunks(context.Background(), embedSource{
		jobs:         jobs,
		chunks:       chunks,
		embed:        embedder,
		batchSize:    2,
		embeddingDim: 3,
	}, "j1", &types.KnowledgeDoc{ID: "d1", Title: "doc"})
	require.NoError(t, err)

	assert.Equal(t, embedFailed, outcome)
	assert.Contains(t, detail, "dim mismatch")
	assert.Equal(t, 0, chunks.embeddedCount())
	assert.Equal(t, 0, jobs.snapshot().ProcessedChunks)
}

func TestEmbedChunks_StopsOnContextCancel(t *testing.T) {
	jobs := &fakeJobStore{job: types.EmbeddingJob{
		ID: "j1", DocID: "d1",
		Status:      types.EMBEDDING_JOB_STATUS_PROCESSING,
		TotalChunks: 4,
	}}
	chunks := &fakeChunkStore{chunks: newTestChunks("d1", 4)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, _, err := embedChunks(ctx, embedSource{
		jobs:      jobs,
		chunks:    chunks,
		embed:     &fakeEmbedder{dim: 3},
		batchSize: 2,
	}, "j1", &types.KnowledgeDoc{ID: "d1", Title: "doc"})
	require.NoError(t, err)

	assert.Equal(t, embedInterrupted, outcome)
	assert.Equal(t, 0, chunks.embeddedCount())
	assert.Equal(t, types.EMBEDDING_JOB_STATUS_PROCESSING, jobs.snapshot().Status)
}
