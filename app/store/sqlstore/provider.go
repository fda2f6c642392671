package sqlstore

import (
	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/complypilot/complypilot/app/store"
	"github.com/complypilot/complypilot/pkg/register"
	"github.com/complypilot/complypilot/pkg/sqlstore"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

var provider = &Provider{
	stores: &Stores{},
}

func GetProvider() *Provider {
	return provider
}

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.ProviderConfigStore
	store.KnowledgeDocStore
	store.KnowledgeChunkStore
	store.EmbeddingJobStore
	store.ConversationStore
	store.ChatMessageStore
	store.FeedbackStore
}

type RegisterKey struct{}

func MustSetup(m sqlstore.ConnectConfig, replicas ...sqlstore.ConnectConfig) func() *Provider {
	provider.SqlProvider = sqlstore.MustSetupProvider(m, replicas...)

	for _, f := range register.ResolveFuncHandlers[*Provider](RegisterKey{}) {
		f(provider)
	}

	return func() *Provider {
		return provider
	}
}

func (p *Provider) ProviderConfigStore() store.ProviderConfigStore {
	return p.stores.ProviderConfigStore
}

func (p *Provider) KnowledgeDocStore() store.KnowledgeDocStore {
	return p.stores.KnowledgeDocStore
}

func (p *Provider) KnowledgeChunkStore() store.KnowledgeChunkStore {
	return p.stores.KnowledgeChunkStore
}

func (p *Provider) EmbeddingJobStore() store.EmbeddingJobStore {
	return p.stores.EmbeddingJobStore
}

func (p *Provider) ConversationStore() store.ConversationStore {
	return p.stores.ConversationStore
}

func (p *Provider) ChatMessageStore() store.ChatMessageStore {
	return p.stores.ChatMessageStore
}

func (p *Provider) FeedbackStore() store.FeedbackStore {
	return p.stores.FeedbackStore
}
