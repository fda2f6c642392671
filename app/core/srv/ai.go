package srv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/complypilot/complypilot/app/store"
	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/ai/gemini"
	"github.com/complypilot/complypilot/pkg/ai/ollama"
	"github.com/complypilot/complypilot/pkg/ai/openai"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
)

// provider 配置按调用时解析，快照只为省掉每次请求的建连开销
const snapshotTTL = time.Second * 30

type DecryptFunc func(ciphertext string) (string, error)

type AI struct {
	stores  func() store.Store
	decrypt DecryptFunc

	mu       sync.Mutex
	snapshot *Snapshot
}

// Snapshot 一次解析出的可用驱动组合。Chat 与 Embed 可能来自
// 不同的 provider（chat 模型不具备 embedding 能力时的显式回退）。
type Snapshot struct {
	Config      types.ProviderConfig
	EmbedConfig types.ProviderConfig
	Chat        ai.ChatCapable
	Embed       ai.EmbeddingCapable

	expiresAt time.Time
}

func ApplyAI(stores func() store.Store, decrypt DecryptFunc) ApplyFunc {
	return func(s *Srv) {
		s.ai = &AI{
			stores:  stores,
			decrypt: decrypt,
		}
	}
}

// Invalidate 配置变更后强制下一次调用重新解析
func (s *AI) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

func (s *AI) Resolve(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && time.Now().Before(s.snapshot.expiresAt) {
		return s.snapshot, nil
	}

	snapshot, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	s.snapshot = snapshot
	return snapshot, nil
}

func (s *AI) resolve(ctx context.Context) (*Snapshot, error) {
	cfg, err := s.stores().ProviderConfigStore().GetDefault(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("srv.AI.resolve.GetDefault", errors.ERROR_CONFIGURATION, err).Code(http.StatusFailedDependency)
		}
		return nil, errors.New("srv.AI.resolve.GetDefault", errors.ERROR_INTERNAL, err)
	}

	chat, embed, err := s.buildDrivers(ctx, *cfg)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Config:      *cfg,
		EmbedConfig: *cfg,
		Chat:        chat,
		Embed:       embed,
		expiresAt:   time.Now().Add(snapshotTTL),
	}

	if embed == nil {
		embedCfg, embedDriver, err := s.resolveEmbeddingFallback(ctx, cfg.ID)
		if err != nil {
			return nil, err
		}
		slog.Info("chat provider lacks embedding support, falling back",
			slog.String("chat_provider", cfg.Provider),
			slog.String("embedding_provider", embedCfg.Provider),
			slog.String("embedding_config", embedCfg.ID))
		snapshot.EmbedConfig = embedCfg
		snapshot.Embed = embedDriver
	}

	return snapshot, nil
}

func (s *AI) buildDrivers(ctx context.Context, cfg types.ProviderConfig) (ai.ChatCapable, ai.EmbeddingCapable, error) {
	apiKey, err := s.decrypt(cfg.ApiKey)
	if err != nil {
		return nil, nil, errors.New("srv.AI.buildDrivers.decrypt", errors.ERROR_CONFIGURATION, err).Code(http.StatusFailedDependency)
	}

	switch cfg.Provider {
	case types.PROVIDER_OPENAI:
		driver := openai.New(apiKey, cfg.ApiUrl, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
		return driver, driver, nil
	case types.PROVIDER_OLLAMA:
		driver := ollama.New(apiKey, cfg.ApiUrl, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
		return driver, driver, nil
	case types.PROVIDER_GEMINI:
		driver, err := gemini.New(ctx, apiKey, cfg.ChatModel)
		if err != nil {
			return nil, nil, errors.New("srv.AI.buildDrivers.gemini", errors.ERROR_CONFIGURATION, err).Code(http.StatusFailedDependency)
		}
		// gemini 不参与 embedding，由 resolveEmbeddingFallback 兜底
		return driver, nil, nil
	default:
		return nil, nil, errors.New("srv.AI.buildDrivers", errors.ERROR_CONFIGURATION,
			fmt.Errorf("unknown provider %q", cfg.Provider)).Code(http.StatusFailedDependency)
	}
}

func (s *AI) resolveEmbeddingFallback(ctx context.Context, excludeID string) (types.ProviderConfig, ai.EmbeddingCapable, error) {
	status := types.StatusEnabled
	list, err := s.stores().ProviderConfigStore().List(ctx, types.ListProviderConfigOptions{
		Status: &status,
	}, types.NO_PAGINATION, types.NO_PAGINATION)
	if err != nil {
		return types.ProviderConfig{}, nil, errors.New("srv.AI.resolveEmbeddingFallback.List", errors.ERROR_INTERNAL, err)
	}

	for _, cfg := range list {
		if cfg.ID == excludeID || cfg.EmbeddingModel == "" {
			continue
		}
		if cfg.Provider != types.PROVIDER_OPENAI && cfg.Provider != types.PROVIDER_OLLAMA {
			continue
		}
		_, embed, err := s.buildDrivers(ctx, cfg)
		if err != nil {
			return types.ProviderConfig{}, nil, err
		}
		return cfg, embed, nil
	}

	return types.ProviderConfig{}, nil, errors.New("srv.AI.resolveEmbeddingFallback", errors.ERROR_CONFIGURATION,
		fmt.Errorf("no embedding-capable provider configured")).Code(http.StatusFailedDependency)
}
