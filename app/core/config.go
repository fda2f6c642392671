package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}

	return *conf
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	return c
}

type CoreConfig struct {
	Addr     string      `toml:"addr"`
	Log      Log         `toml:"log"`
	Postgres PGConfig    `toml:"postgres"`
	Redis    RedisConfig `toml:"redis"`

	Security  Security        `toml:"security"`
	Chunker   ChunkerConfig   `toml:"chunker"`
	Ingestion IngestionConfig `toml:"ingestion"`
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("COMPLYPILOT_API_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.Security.FromENV()
}

type Security struct {
	EncryptKey string `toml:"encrypt_key"`
}

func (s *Security) FromENV() {
	s.EncryptKey = os.Getenv("COMPLYPILOT_SECURITY_ENCRYPT_KEY")
}

type ChunkerConfig struct {
	TokenSize int `toml:"token_size"`
	Overlap   int `toml:"overlap"`
}

type IngestionConfig struct {
	Concurrency   int `toml:"concurrency"`    // 同时处理的 embedding 任务数，默认 3
	BatchSize     int `toml:"batch_size"`     // 单次 embedding 请求的 chunk 数，默认 16
	RatePerSecond int `toml:"rate_per_second"` // embedding 请求限速，默认 2
	StallSeconds  int `toml:"stall_seconds"`  // 无进度判定为僵死的秒数，默认 300
}

func (c IngestionConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 3
	}
	return c.Concurrency
}

func (c IngestionConfig) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return 16
	}
	return c.BatchSize
}

func (c IngestionConfig) GetRatePerSecond() int {
	if c.RatePerSecond <= 0 {
		return 2
	}
	return c.RatePerSecond
}

func (c IngestionConfig) GetStallSeconds() int {
	if c.StallSeconds <= 0 {
		return 300
	}
	return c.StallSeconds
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("COMPLYPILOT_API_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

func (m *RedisConfig) FromENV() {
	m.Addr = os.Getenv("COMPLYPILOT_API_REDIS_ADDR")
	m.Password = os.Getenv("COMPLYPILOT_API_REDIS_PASSWORD")
	if db := os.Getenv("COMPLYPILOT_API_REDIS_DB"); db != "" {
		m.DB, _ = strconv.Atoi(db)
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("COMPLYPILOT_API_LOG_LEVEL")
	l.Path = os.Getenv("COMPLYPILOT_API_LOG_PATH")
}

func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
