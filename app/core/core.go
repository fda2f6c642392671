package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/complypilot/complypilot/app/core/srv"
	"github.com/complypilot/complypilot/app/store"
	"github.com/complypilot/complypilot/app/store/sqlstore"
	"github.com/complypilot/complypilot/pkg/chunker"
	"github.com/complypilot/complypilot/pkg/security"
	"github.com/complypilot/complypilot/pkg/utils"
)

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores     func() *sqlstore.Provider
	redis      redis.UniversalClient
	cipher     *security.Cipher
	chunker    *chunker.Chunker
	httpEngine *gin.Engine

	metrics *Metrics
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	utils.SetupIDWorker(1)

	cipher, err := security.NewCipher(cfg.Security.EncryptKey)
	if err != nil {
		panic(err)
	}

	core := &Core{
		cfg:        cfg,
		cipher:     cipher,
		metrics:    NewMetrics("complypilot", "core"),
		httpEngine: gin.New(),
		chunker: chunker.NewChunker(chunker.Options{
			TokenSize: cfg.Chunker.TokenSize,
			Overlap:   cfg.Chunker.Overlap,
		}),
		redis: redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
	}

	core.stores = sqlstore.MustSetup(cfg.Postgres)
	core.srv = srv.SetupSrvs(srv.ApplyAI(core.Store, core.DecryptData))

	return core
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) Store() store.Store {
	return s.stores()
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) Chunker() *chunker.Chunker {
	return s.chunker
}

func (s *Core) Install() error {
	return s.stores().Install()
}

func (s *Core) EncryptData(data []byte) (string, error) {
	raw, err := s.cipher.Encrypt(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Core) DecryptData(data string) (string, error) {
	raw, err := s.cipher.Decrypt([]byte(data))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

const lockTTL = time.Minute * 5

// TryLock redis SetNX 抢占，用于会话级与文档级互斥
func (s *Core) TryLock(ctx context.Context, key string) (bool, error) {
	return s.redis.SetNX(ctx, key, 1, lockTTL).Result()
}

// ReleaseLock 不跟随调用方取消：请求断开后锁照样释放，
// 否则要等 TTL 到期才能再进
func (s *Core) ReleaseLock(ctx context.Context, key string) error {
	ctx, cancel := detachContext(ctx)
	defer cancel()
	return s.redis.Del(ctx, key).Err()
}

// detachContext 保留 value、剥离取消信号，换成固定超时
func detachContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), time.Second*3)
}

func (s *Core) CacheSetEx(ctx context.Context, key, value string, expire time.Duration) error {
	return s.redis.SetEx(ctx, key, value, expire).Err()
}

func (s *Core) CacheGet(ctx context.Context, key string) (string, error) {
	result, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (s *Core) CacheIncr(ctx context.Context, key string) (int64, error) {
	return s.redis.Incr(ctx, key).Result()
}

func (s *Core) CacheDel(ctx context.Context, keys ...string) error {
	return s.redis.Del(ctx, keys...).Err()
}
