package store

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/complypilot/complypilot/pkg/sqlstore"
	"github.com/complypilot/complypilot/pkg/types"
)

type ProviderConfigStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.ProviderConfig) error
	Get(ctx context.Context, id string) (*types.ProviderConfig, error)
	// GetDefault 返回启用中的默认配置，没有则返回 sql.ErrNoRows
	GetDefault(ctx context.Context) (*types.ProviderConfig, error)
	List(ctx context.Context, opts types.ListProviderConfigOptions, page, pageSize uint64) ([]types.ProviderConfig, error)
	Update(ctx context.Context, id string, args types.UpdateProviderConfigArgs) error
	// Activate 将目标配置设为启用默认，其余默认标记全部清除
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type KnowledgeDocStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.KnowledgeDoc) error
	Get(ctx context.Context, id string) (*types.KnowledgeDoc, error)
	List(ctx context.Context, opts types.GetKnowledgeDocOptions, page, pageSize uint64) ([]types.KnowledgeDoc, error)
	Total(ctx context.Context, opts types.GetKnowledgeDocOptions) (int64, error)
	UpdateStatus(ctx context.Context, id string, status int) error
}

type KnowledgeChunkStore interface {
	sqlstore.SqlCommons
	BatchCreate(ctx context.Context, datas []*types.KnowledgeChunk) error
	List(ctx context.Context, docID string) ([]types.KnowledgeChunk, error)
	// ListUnembedded 按 chunk_index 升序返回尚无向量的 chunk
	ListUnembedded(ctx context.Context, docID string, limit uint64) ([]types.KnowledgeChunk, error)
	// UpdateEmbedding 单行原子写入向量
	UpdateEmbedding(ctx context.Context, id string, vector pgvector.Vector) error
	ResetEmbeddings(ctx context.Context, docID string) error
	DeleteByDoc(ctx context.Context, docID string) error
	CountByDoc(ctx context.Context, docID string) (int64, error)
	// Query 余弦检索，只命中 active 文档，cos 降序、id 升序保证结果可重现
	Query(ctx context.Context, vector pgvector.Vector, topK uint64, threshold float64) ([]types.ChunkQueryResult, error)
}

type EmbeddingJobStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.EmbeddingJob) error
	Get(ctx context.Context, id string) (*types.EmbeddingJob, error)
	List(ctx context.Context, opts types.ListEmbeddingJobOptions, page, pageSize uint64) ([]types.EmbeddingJob, error)
	// MarkProcessing 仅当当前状态为 pending 时生效，返回是否抢到
	MarkProcessing(ctx context.Context, id, provider string) (bool, error)
	IncrProcessed(ctx context.Context, id string, delta int) error
	Finish(ctx context.Context, id string, status types.EmbeddingJobStatus, errorDetail string) error
	// Cancel 将未终态任务置为 failed 并记录原因，返回是否生效
	Cancel(ctx context.Context, id, reason string) (bool, error)
	Touch(ctx context.Context, id string) error
}

type ConversationStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Conversation) error
	Get(ctx context.Context, id string) (*types.Conversation, error)
	List(ctx context.Context, opts types.ListConversationOptions, page, pageSize uint64) ([]types.Conversation, error)
	UpdateStatus(ctx context.Context, id string, status int) error
	UpdateTitle(ctx context.Context, id, title string) error
	TotalCreatedBetween(ctx context.Context, from, to int64) (int64, error)
}

type ChatMessageStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data *types.ChatMessage) error
	Get(ctx context.Context, id string) (*types.ChatMessage, error)
	List(ctx context.Context, conversationID string, page, pageSize uint64) ([]types.ChatMessage, error)
	// NextSequence 返回会话内下一个严格递增的序号
	NextSequence(ctx context.Context, conversationID string) (int64, error)
	TotalCreatedBetween(ctx context.Context, from, to int64) (int64, error)
	ListUserMessagesBetween(ctx context.Context, from, to int64, limit uint64) ([]types.ChatMessage, error)
}

type FeedbackStore interface {
	sqlstore.SqlCommons
	// Upsert 同一条消息同一用户仅保留最新一次评价
	Upsert(ctx context.Context, data types.Feedback) error
	List(ctx context.Context, opts types.ListFeedbackOptions, page, pageSize uint64) ([]types.Feedback, error)
	RatingCounts(ctx context.Context, from, to int64) (map[int]int64, error)
	HelpfulStats(ctx context.Context, from, to int64) (helpful int64, total int64, err error)
}

type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	ProviderConfigStore() ProviderConfigStore
	KnowledgeDocStore() KnowledgeDocStore
	KnowledgeChunkStore() KnowledgeChunkStore
	EmbeddingJobStore() EmbeddingJobStore
	ConversationStore() ConversationStore
	ChatMessageStore() ChatMessageStore
	FeedbackStore() FeedbackStore
}
