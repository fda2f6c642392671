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
		provider.stores.ProviderConfigStore = NewProviderConfigStore(provider)
	})
}

type ProviderConfigStore struct {
	CommonFields
}

func NewProviderConfigStore(provider SqlProviderAchieve) *ProviderConfigStore {
	repo := &ProviderConfigStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_PROVIDER_CONFIG)
	repo.SetAllColumns("id", "name", "provider", "api_url", "api_key", "chat_model", "embedding_model",
		"embedding_dim", "temperature", "max_tokens", "context_tokens", "top_k", "threshold",
		"system_prompt", "status", "is_default", "created_at", "updated_at")
	return repo
}

func (s *ProviderConfigStore) Create(ctx context.Context, data types.ProviderConfig) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Name, data.Provider, data.ApiUrl, data.ApiKey, data.ChatModel, data.EmbeddingModel,
			data.EmbeddingDim, data.Temperature, data.MaxTokens, data.ContextTokens, data.TopK, data.Threshold,
			data.SystemPrompt, data.Status, data.IsDefault, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ProviderConfigStore) Get(ctx context.Context, id string) (*types.ProviderConfig, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ProviderConfig
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ProviderConfigStore) GetDefault(ctx context.Context) (*types.ProviderConfig, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"is_default": true, "status": types.StatusEnabled}).Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ProviderConfig
	// 默认配置读主库，保证 Activate 之后立即可见
	if err = s.GetMaster(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ProviderConfigStore) List(ctx context.Context, opts types.ListProviderConfigOptions, page, pageSize uint64) ([]types.ProviderConfig, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	query = withPagination(query, page, pageSize)
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.ProviderConfig
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ProviderConfigStore) Update(ctx context.Context, id string, args types.UpdateProviderConfigArgs) error {
	query := sq.Update(s.GetTable()).
		Set("name", args.Name).
		Set("api_url", args.ApiUrl).
		Set("chat_model", args.ChatModel).
		Set("embedding_model", args.EmbeddingModel).
		Set("embedding_dim", args.EmbeddingDim).
		Set("temperature", args.Temperature).
		Set("max_tokens", args.MaxTokens).
		Set("context_tokens", args.ContextTokens).
		Set("top_k", args.TopK).
		Set("threshold", args.Threshold).
		Set("system_prompt", args.SystemPrompt).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	if args.ApiKey != "" {
		query = query.Set("api_key", args.ApiKey)
	}

	queryString, sqlArgs, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, sqlArgs...)
	return err
}

func clearDefaultQuery(table string, now int64) sq.UpdateBuilder {
	return sq.Update(table).Set("is_default", false).Set("updated_at", now).Where(sq.Eq{"is_default": true})
}

func setDefaultQuery(table, id string, now int64) sq.UpdateBuilder {
	return sq.Update(table).
		Set("is_default", true).
		Set("status", types.StatusEnabled).
		Set("updated_at", now).
		Where(sq.Eq{"id": id})
}

// Activate 清旧默认与立新默认在同一事务内完成，
// 不存在清空之后写入失败、系统没有默认配置的中间态
func (s *ProviderConfigStore) Activate(ctx context.Context, id string) error {
	now := time.Now().Unix()

	return s.provider.Transaction(ctx, func(ctx context.Context) error {
		queryString, args, err := clearDefaultQuery(s.GetTable(), now).ToSql()
		if err != nil {
			return ErrorSqlBuild(err)
		}
		if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
			return err
		}

		queryString, args, err = setDefaultQuery(s.GetTable(), id, now).ToSql()
		if err != nil {
			return ErrorSqlBuild(err)
		}
		_, err = s.GetMaster(ctx).Exec(queryString, args...)
		return err
	})
}

func (s *ProviderConfigStore) Delete(ctx context.Context, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
