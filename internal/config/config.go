package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Models    ModelsConfig    `mapstructure:"models"`
	Router    RouterConfig    `mapstructure:"router"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Documents DocumentsConfig `mapstructure:"documents"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSNString       string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.DSNString
	}
	if c.Path != "" {
		return c.Path
	}
	return c.DSNString
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ModelsConfig holds the three model targets. Targets are fixed at startup
// and immutable afterwards.
type ModelsConfig struct {
	SmallLocal    TargetConfig `mapstructure:"small_local"`
	LargeLocal    TargetConfig `mapstructure:"large_local"`
	CloudFallback TargetConfig `mapstructure:"cloud_fallback"`
}

type TargetConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxContext int           `mapstructure:"max_context"`
}

// RouterConfig tunes request classification and circuit breaking. The score
// threshold is configuration, not contract: it only promises that simpler and
// shorter requests stay on the small model.
type RouterConfig struct {
	ScoreThreshold   int           `mapstructure:"score_threshold"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
}

type RetrievalConfig struct {
	ChunkSize    int     `mapstructure:"chunk_size"`
	OverlapRatio float64 `mapstructure:"overlap_ratio"`
	DefaultTopK  int     `mapstructure:"default_top_k"`
}

type CacheConfig struct {
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type QueueConfig struct {
	Workers       int `mapstructure:"workers"`
	MaxDepth      int `mapstructure:"max_depth"`
	AsyncTokenMin int `mapstructure:"async_token_min"`
}

// DocumentsConfig points the batch ingestion tool at an S3-compatible bucket
// of source documents.
type DocumentsConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/infercore.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("embedding.base_url", "http://localhost:4000/v1")
	v.SetDefault("embedding.model", "internal-embedding")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("models.small_local.endpoint", "http://localhost:4000/v1")
	v.SetDefault("models.small_local.model", "internal-llm-3b")
	v.SetDefault("models.small_local.timeout", 30*time.Second)
	v.SetDefault("models.small_local.max_context", 8192)
	v.SetDefault("models.large_local.endpoint", "http://localhost:4000/v1")
	v.SetDefault("models.large_local.model", "internal-llm-14b")
	v.SetDefault("models.large_local.timeout", 120*time.Second)
	v.SetDefault("models.large_local.max_context", 32768)
	v.SetDefault("models.cloud_fallback.endpoint", "https://api.openai.com/v1")
	v.SetDefault("models.cloud_fallback.model", "gpt-4o-mini")
	v.SetDefault("models.cloud_fallback.timeout", 60*time.Second)
	v.SetDefault("models.cloud_fallback.max_context", 128000)
	v.SetDefault("router.score_threshold", 50)
	v.SetDefault("router.failure_threshold", 3)
	v.SetDefault("router.cooldown_period", 30*time.Second)
	v.SetDefault("retrieval.chunk_size", 1000)
	v.SetDefault("retrieval.overlap_ratio", 0.1)
	v.SetDefault("retrieval.default_top_k", 3)
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.max_wait", 10*time.Second)
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_depth", 256)
	v.SetDefault("queue.async_token_min", 2048)
	v.SetDefault("documents.region", "auto")
	v.SetDefault("documents.bucket", "documents")
	v.SetDefault("documents.use_ssl", false)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.base_url", "LITELLM_URL")
	v.BindEnv("embedding.api_key", "LITELLM_KEY")
	v.BindEnv("models.small_local.api_key", "LITELLM_KEY")
	v.BindEnv("models.large_local.api_key", "LITELLM_KEY")
	v.BindEnv("models.cloud_fallback.api_key", "OPENAI_API_KEY")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("documents.endpoint", "DOCS_S3_ENDPOINT")
	v.BindEnv("documents.access_key", "DOCS_S3_ACCESS_KEY")
	v.BindEnv("documents.secret_key", "DOCS_S3_SECRET_KEY")
	v.BindEnv("documents.bucket", "DOCS_S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
