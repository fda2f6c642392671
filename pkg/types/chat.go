package types

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

const (
	CONVERSATION_STATUS_ACTIVE   = 1
	CONVERSATION_STATUS_ARCHIVED = 2
)

// Conversation 会话。归档不删除历史。
type Conversation struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Title     string `json:"title" db:"title"`
	Status    int    `json:"status" db:"status"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

type ListConversationOptions struct {
	UserID string
	Status *int
}

func (opt ListConversationOptions) Apply(query *sq.SelectBuilder) {
	if opt.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opt.UserID})
	}
	if opt.Status != nil {
		*query = query.Where(sq.Eq{"status": *opt.Status})
	}
}

type MessageUserRole int

const (
	USER_ROLE_UNKNOWN   MessageUserRole = 0
	USER_ROLE_USER      MessageUserRole = 1
	USER_ROLE_ASSISTANT MessageUserRole = 2
	USER_ROLE_SYSTEM    MessageUserRole = 3
)

func (r MessageUserRole) String() string {
	switch r {
	case USER_ROLE_ASSISTANT:
		return "assistant"
	case USER_ROLE_USER:
		return "user"
	case USER_ROLE_SYSTEM:
		return "system"
	default:
		return "unknown"
	}
}

// ChunkRef 回答引用的知识切片
type ChunkRef struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Cos     float64 `json:"cos"`
}

// ChatMessage 会话消息，Sequence 在会话内严格递增
type ChatMessage struct {
	ID               string          `json:"id" db:"id"`
	ConversationID   string          `json:"conversation_id" db:"conversation_id"`
	UserID           string          `json:"user_id" db:"user_id"`
	Role             MessageUserRole `json:"role" db:"role"`
	Message          string          `json:"message" db:"message"`
	Sequence         int64           `json:"sequence" db:"sequence"`
	PromptTokens     int             `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens" db:"completion_tokens"`
	Refs             json.RawMessage `json:"refs" db:"refs"` // []ChunkRef
	Provider         string          `json:"provider" db:"provider"`
	Model            string          `json:"model" db:"model"`
	SendTime         int64           `json:"send_time" db:"send_time"`
}

func (m *ChatMessage) ChunkRefs() []ChunkRef {
	if len(m.Refs) == 0 {
		return nil
	}
	var refs []ChunkRef
	if err := json.Unmarshal(m.Refs, &refs); err != nil {
		return nil
	}
	return refs
}

// MessageContext 组装给模型的单条上下文
type MessageContext struct {
	Role    MessageUserRole
	Content string
}
