package types

import (
	sq "github.com/Masterminds/squirrel"
)

// Feedback 针对 assistant 消息的用户评价
type Feedback struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`
	UserID    string `json:"user_id" db:"user_id"`
	Rating    int    `json:"rating" db:"rating"` // 1-5
	Helpful   *bool  `json:"helpful" db:"helpful"`
	Comment   string `json:"comment" db:"comment"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type ListFeedbackOptions struct {
	MessageID string
	From      int64
	To        int64
}

func (opt ListFeedbackOptions) Apply(query *sq.SelectBuilder) {
	if opt.MessageID != "" {
		*query = query.Where(sq.Eq{"message_id": opt.MessageID})
	}
	if opt.From > 0 {
		*query = query.Where(sq.GtOrEq{"created_at": opt.From})
	}
	if opt.To > 0 {
		*query = query.Where(sq.LtOrEq{"created_at": opt.To})
	}
}

// UsageAnalytics 按时间窗聚合出的使用统计
type UsageAnalytics struct {
	ConversationCount int64           `json:"conversation_count"`
	MessageCount      int64           `json:"message_count"`
	AvgMessages       float64         `json:"avg_messages"`
	RatingCounts      map[int]int64   `json:"rating_counts"`
	HelpfulPercent    float64         `json:"helpful_percent"`
	From              int64           `json:"from"`
	To                int64           `json:"to"`
}

type TopicCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}
