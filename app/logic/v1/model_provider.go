package v1

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

// 配置缺省值，按主流模型的窗口与检索习惯取
const (
	DEFAULT_CONTEXT_TOKENS = 8192
	DEFAULT_MAX_TOKENS     = 1024
	DEFAULT_TOP_K          = 5
	DEFAULT_THRESHOLD      = 0.5
	DEFAULT_TEMPERATURE    = 0.7
)

type ModelProviderLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewModelProviderLogic(ctx context.Context, core *core.Core) *ModelProviderLogic {
	return &ModelProviderLogic{
		ctx:  ctx,
		core: core,
	}
}

func (l *ModelProviderLogic) requireAdmin() error {
	if GetUserInfo(l.ctx).Role != ROLE_ADMIN {
		return errors.New("ModelProviderLogic.requireAdmin", errors.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden)
	}
	return nil
}

type CreateProviderConfigArgs struct {
	Name           string  `json:"name" binding:"required"`
	Provider       string  `json:"provider" binding:"required"`
	ApiUrl         string  `json:"api_url"`
	ApiKey         string  `json:"api_key"`
	ChatModel      string  `json:"chat_model"`
	EmbeddingModel string  `json:"embedding_model"`
	EmbeddingDim   int     `json:"embedding_dim"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ContextTokens  int     `json:"context_tokens"`
	TopK           int     `json:"top_k"`
	Threshold      float64 `json:"threshold"`
	SystemPrompt   string  `json:"system_prompt"`
}

func validProvider(provider string) bool {
	switch provider {
	case types.PROVIDER_OPENAI, types.PROVIDER_GEMINI, types.PROVIDER_OLLAMA:
		return true
	}
	return false
}

func (l *ModelProviderLogic) CreateProviderConfig(args CreateProviderConfigArgs) (*types.ProviderConfig, error) {
	if err := l.requireAdmin(); err != nil {
		return nil, err
	}
	if !validProvider(args.Provider) || strings.TrimSpace(args.Name) == "" {
		return nil, errors.New("ModelProviderLogic.CreateProviderConfig.check", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	encryptedKey, err := l.core.EncryptData([]byte(args.ApiKey))
	if err != nil {
		return nil, errors.New("ModelProviderLogic.CreateProviderConfig.EncryptData", errors.ERROR_INTERNAL, err)
	}

	now := time.Now().Unix()
	cfg := types.ProviderConfig{
		ID:             utils.GenUniqIDStr(),
		Name:           args.Name,
		Provider:       args.Provider,
		ApiUrl:         args.ApiUrl,
		ApiKey:         encryptedKey,
		ChatModel:      args.ChatModel,
		EmbeddingModel: args.EmbeddingModel,
		EmbeddingDim:   args.EmbeddingDim,
		Temperature:    args.Temperature,
		MaxTokens:      args.MaxTokens,
		ContextTokens:  args.ContextTokens,
		TopK:           args.TopK,
		Threshold:      args.Threshold,
		SystemPrompt:   args.SystemPrompt,
		Status:         types.StatusEnabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DEFAULT_TEMPERATURE
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DEFAULT_MAX_TOKENS
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = DEFAULT_CONTEXT_TOKENS
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DEFAULT_TOP_K
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DEFAULT_THRESHOLD
	}

	if err = l.core.Store().ProviderConfigStore().Create(l.ctx, cfg); err != nil {
		return nil, errors.New("ModelProviderLogic.CreateProviderConfig.ProviderConfigStore.Create", errors.ERROR_INTERNAL, err)
	}
	return &cfg, nil
}

func (l *ModelProviderLogic) GetProviderConfig(id string) (*types.ProviderConfig, error) {
	if err := l.requireAdmin(); err != nil {
		return nil, err
	}

	cfg, err := l.core.Store().ProviderConfigStore().Get(l.ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("ModelProviderLogic.GetProviderConfig.Get", errors.ERROR_NOTFOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("ModelProviderLogic.GetProviderConfig.Get", errors.ERROR_INTERNAL, err)
	}
	return cfg, nil
}

func (l *ModelProviderLogic) ListProviderConfigs(opts types.ListProviderConfigOptions, page, pageSize uint64) ([]types.ProviderConfig, error) {
	if err := l.requireAdmin(); err != nil {
		return nil, err
	}

	list, err := l.core.Store().ProviderConfigStore().List(l.ctx, opts, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ModelProviderLogic.ListProviderConfigs.List", errors.ERROR_INTERNAL, err)
	}
	return list, nil
}

type UpdateProviderConfigRequest struct {
	Name           string  `json:"name" binding:"required"`
	ApiUrl         string  `json:"api_url"`
	ApiKey         string  `json:"api_key"` // 留空表示不更新
	ChatModel      string  `json:"chat_model"`
	EmbeddingModel string  `json:"embedding_model"`
	EmbeddingDim   int     `json:"embedding_dim"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ContextTokens  int     `json:"context_tokens"`
	TopK           int     `json:"top_k"`
	Threshold      float64 `json:"threshold"`
	SystemPrompt   string  `json:"system_prompt"`
}

func (l *ModelProviderLogic) UpdateProviderConfig(id string, req UpdateProviderConfigRequest) error {
	if _, err := l.GetProviderConfig(id); err != nil {
		return errors.Trace("ModelProviderLogic.UpdateProviderConfig", err)
	}

	args := types.UpdateProviderConfigArgs{
		Name:           req.Name,
		ApiUrl:         req.ApiUrl,
		ChatModel:      req.ChatModel,
		EmbeddingModel: req.EmbeddingModel,
		EmbeddingDim:   req.EmbeddingDim,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ContextTokens:  req.ContextTokens,
		TopK:           req.TopK,
		Threshold:      req.Threshold,
		SystemPrompt:   req.SystemPrompt,
	}
	if req.ApiKey != "" {
		encryptedKey, err := l.core.EncryptData([]byte(req.ApiKey))
		if err != nil {
			return errors.New("ModelProviderLogic.UpdateProviderConfig.EncryptData", errors.ERROR_INTERNAL, err)
		}
		args.ApiKey = encryptedKey
	}

	if err := l.core.Store().ProviderConfigStore().Update(l.ctx, id, args); err != nil {
		return errors.New("ModelProviderLogic.UpdateProviderConfig.Update", errors.ERROR_INTERNAL, err)
	}

	l.core.Srv().AI().Invalidate()
	return nil
}

// ActivateProviderConfig 切换默认配置，同一时刻只有一个启用默认
func (l *ModelProviderLogic) ActivateProviderConfig(id string) error {
	if _, err := l.GetProviderConfig(id); err != nil {
		return errors.Trace("ModelProviderLogic.ActivateProviderConfig", err)
	}

	if err := l.core.Store().ProviderConfigStore().Activate(l.ctx, id); err != nil {
		return errors.New("ModelProviderLogic.ActivateProviderConfig.Activate", errors.ERROR_INTERNAL, err)
	}

	l.core.Srv().AI().Invalidate()
	return nil
}

// DeleteProviderConfig 允许删掉启用中的默认配置，
// 后续对话会以配置错误拒绝，历史仍可读。
func (l *ModelProviderLogic) DeleteProviderConfig(id string) error {
	if _, err := l.GetProviderConfig(id); err != nil {
		return errors.Trace("ModelProviderLogic.DeleteProviderConfig", err)
	}

	if err := l.core.Store().ProviderConfigStore().Delete(l.ctx, id); err != nil {
		return errors.New("ModelProviderLogic.DeleteProviderConfig.Delete", errors.ERROR_INTERNAL, err)
	}

	l.core.Srv().AI().Invalidate()
	return nil
}
