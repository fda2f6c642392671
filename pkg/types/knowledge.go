package types

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const (
	KNOWLEDGE_DOC_STATUS_ACTIVE   = 1
	KNOWLEDGE_DOC_STATUS_INACTIVE = 0
)

// KnowledgeDoc 知识库文档，删除为软下线，已有 chunk 保留
type KnowledgeDoc struct {
	ID        string         `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	Content   string         `json:"content" db:"content"`
	Category  string         `json:"category" db:"category"`
	Tags      pq.StringArray `json:"tags" db:"tags"`
	Status    int            `json:"status" db:"status"`
	CreatedAt int64          `json:"created_at" db:"created_at"`
	UpdatedAt int64          `json:"updated_at" db:"updated_at"`
}

type GetKnowledgeDocOptions struct {
	ID       string
	IDs      []string
	Category string
	Status   *int
	Keyword  string
}

func (opt GetKnowledgeDocOptions) Apply(query *sq.SelectBuilder) {
	if opt.ID != "" {
		*query = query.Where(sq.Eq{"id": opt.ID})
	}
	if len(opt.IDs) > 0 {
		*query = query.Where(sq.Eq{"id": opt.IDs})
	}
	if opt.Category != "" {
		*query = query.Where(sq.Eq{"category": opt.Category})
	}
	if opt.Status != nil {
		*query = query.Where(sq.Eq{"status": *opt.Status})
	}
	if opt.Keyword != "" {
		*query = query.Where(sq.Like{"title": "%" + opt.Keyword + "%"})
	}
}
