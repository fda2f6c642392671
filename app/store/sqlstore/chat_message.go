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
		provider.stores.ChatMessageStore = NewChatMessageStore(provider)
	})
}

type ChatMessageStore struct {
	CommonFields
}

func NewChatMessageStore(provider SqlProviderAchieve) *ChatMessageStore {
	repo := &ChatMessageStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHAT_MESSAGE)
	repo.SetAllColumns("id", "conversation_id", "user_id", "role", "message", "sequence",
		"prompt_tokens", "completion_tokens", "refs", "provider", "model", "send_time")
	return repo
}

func (s *ChatMessageStore) Create(ctx context.Context, data *types.ChatMessage) error {
	if data.SendTime == 0 {
		data.SendTime = time.Now().Unix()
	}
	if len(data.Refs) == 0 {
		data.Refs = []byte("[]")
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.ConversationID, data.UserID, data.Role, data.Message, data.Sequence,
			data.PromptTokens, data.CompletionTokens, data.Refs, data.Provider, data.Model, data.SendTime)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatMessageStore) Get(ctx context.Context, id string) (*types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatMessage
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ChatMessageStore) List(ctx context.Context, conversationID string, page, pageSize uint64) ([]types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("sequence ASC")
	query = withPagination(query, page, pageSize)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.ChatMessage
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// NextSequence 读主库，会话内的写串行由上层会话锁保证
func (s *ChatMessageStore) NextSequence(ctx context.Context, conversationID string) (int64, error) {
	query := sq.Select("COALESCE(MAX(sequence), 0) + 1").From(s.GetTable()).
		Where(sq.Eq{"conversation_id": conversationID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var res int64
	if err = s.GetMaster(ctx).Get(&res, queryString, args...); err != nil {
		return 0, err
	}
	return res, nil
}

func (s *ChatMessageStore) TotalCreatedBetween(ctx context.Context, from, to int64) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).
		Where(sq.GtOrEq{"send_time": from}).
		Where(sq.LtOrEq{"send_time": to})

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

func (s *ChatMessageStore) ListUserMessagesBetween(ctx context.Context, from, to int64, limit uint64) ([]types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"role": types.USER_ROLE_USER}).
		Where(sq.GtOrEq{"send_time": from}).
		Where(sq.LtOrEq{"send_time": to}).
		OrderBy("send_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.ChatMessage
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
