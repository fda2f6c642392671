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
		provider.stores.ConversationStore = NewConversationStore(provider)
	})
}

type ConversationStore struct {
	CommonFields
}

func NewConversationStore(provider SqlProviderAchieve) *ConversationStore {
	repo := &ConversationStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CONVERSATION)
	repo.SetAllColumns("id", "user_id", "title", "status", "created_at", "updated_at")
	return repo
}

func (s *ConversationStore) Create(ctx context.Context, data types.Conversation) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.Title, data.Status, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Conversation
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ConversationStore) List(ctx context.Context, opts types.ListConversationOptions, page, pageSize uint64) ([]types.Conversation, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("updated_at DESC")
	query = withPagination(query, page, pageSize)
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Conversation
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ConversationStore) UpdateStatus(ctx context.Context, id string, status int) error {
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConversationStore) UpdateTitle(ctx context.Context, id, title string) error {
	query := sq.Update(s.GetTable()).
		Set("title", title).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConversationStore) TotalCreatedBetween(ctx context.Context, from, to int64) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.LtOrEq{"created_at": to})

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
