package types

import (
	sq "github.com/Masterminds/squirrel"
)

const (
	PROVIDER_OPENAI = "openai"
	PROVIDER_GEMINI = "gemini"
	PROVIDER_OLLAMA = "ollama"
)

// ProviderConfig 模型提供商配置，api_key 落库前使用 AES-CFB 加密
type ProviderConfig struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name"`
	Provider       string  `json:"provider" db:"provider"` // openai/gemini/ollama
	ApiUrl         string  `json:"api_url" db:"api_url"`
	ApiKey         string  `json:"-" db:"api_key"` // 不返回给前端
	ChatModel      string  `json:"chat_model" db:"chat_model"`
	EmbeddingModel string  `json:"embedding_model" db:"embedding_model"`
	EmbeddingDim   int     `json:"embedding_dim" db:"embedding_dim"`
	Temperature    float32 `json:"temperature" db:"temperature"`
	MaxTokens      int     `json:"max_tokens" db:"max_tokens"`
	ContextTokens  int     `json:"context_tokens" db:"context_tokens"` // 模型上下文窗口
	TopK           int     `json:"top_k" db:"top_k"`
	Threshold      float64 `json:"threshold" db:"threshold"` // 相似度阈值
	SystemPrompt   string  `json:"system_prompt" db:"system_prompt"`
	Status         int     `json:"status" db:"status"`
	IsDefault      bool    `json:"is_default" db:"is_default"`
	CreatedAt      int64   `json:"created_at" db:"created_at"`
	UpdatedAt      int64   `json:"updated_at" db:"updated_at"`
}

type ListProviderConfigOptions struct {
	Provider  string
	Status    *int
	IsDefault *bool
}

func (opt ListProviderConfigOptions) Apply(query *sq.SelectBuilder) {
	if opt.Provider != "" {
		*query = query.Where(sq.Eq{"provider": opt.Provider})
	}
	if opt.Status != nil {
		*query = query.Where(sq.Eq{"status": *opt.Status})
	}
	if opt.IsDefault != nil {
		*query = query.Where(sq.Eq{"is_default": *opt.IsDefault})
	}
}

type UpdateProviderConfigArgs struct {
	Name           string
	ApiUrl         string
	ApiKey         string // 已加密内容，为空则不更新
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
	ContextTokens  int
	TopK           int
	Threshold      float64
	SystemPrompt   string
}
