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
		provider.stores.FeedbackStore = NewFeedbackStore(provider)
	})
}

type FeedbackStore struct {
	CommonFields
}

func NewFeedbackStore(provider SqlProviderAchieve) *FeedbackStore {
	repo := &FeedbackStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_FEEDBACK)
	repo.SetAllColumns("id", "message_id", "user_id", "rating", "helpful", "comment", "created_at")
	return repo
}

func (s *FeedbackStore) Upsert(ctx context.Context, data types.Feedback) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.MessageID, data.UserID, data.Rating, data.Helpful, data.Comment, data.CreatedAt).
		Suffix("ON CONFLICT (message_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, helpful = EXCLUDED.helpful, comment = EXCLUDED.comment, created_at = EXCLUDED.created_at")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *FeedbackStore) List(ctx context.Context, opts types.ListFeedbackOptions, page, pageSize uint64) ([]types.Feedback, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	query = withPagination(query, page, pageSize)
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Feedback
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *FeedbackStore) RatingCounts(ctx context.Context, from, to int64) (map[int]int64, error) {
	query := sq.Select("rating", "COUNT(*) AS count").From(s.GetTable()).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.LtOrEq{"created_at": to}).
		GroupBy("rating")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var rows []struct {
		Rating int   `db:"rating"`
		Count  int64 `db:"count"`
	}
	if err = s.GetReplica(ctx).Select(&rows, queryString, args...); err != nil {
		return nil, err
	}

	res := make(map[int]int64, len(rows))
	for _, row := range rows {
		res[row.Rating] = row.Count
	}
	return res, nil
}

func (s *FeedbackStore) HelpfulStats(ctx context.Context, from, to int64) (int64, int64, error) {
	query := sq.Select(
		"COUNT(*) FILTER (WHERE helpful) AS helpful",
		"COUNT(*) FILTER (WHERE helpful IS NOT NULL) AS total",
	).From(s.GetTable()).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.LtOrEq{"created_at": to})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, 0, ErrorSqlBuild(err)
	}

	var row struct {
		Helpful int64 `db:"helpful"`
		Total   int64 `db:"total"`
	}
	if err = s.GetReplica(ctx).Get(&row, queryString, args...); err != nil {
		return 0, 0, err
	}
	return row.Helpful, row.Total, nil
}
