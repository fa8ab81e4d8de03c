package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Routing     RoutingConfig     `yaml:"routing"`
	Generation  GenerationConfig  `yaml:"generation"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	WebSearch   WebSearchConfig   `yaml:"web_search"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Policy      PolicyConfig      `yaml:"policy"`
	Auth        AuthConfig        `yaml:"auth"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxQueryLength   int           `yaml:"max_query_length"`
}

type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&pool_max_conns=%d&pool_max_conn_lifetime=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.MaxOpenConns, d.ConnMaxLifetime)
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

type RoutingConfig struct {
	RequestTimeout   time.Duration        `yaml:"request_timeout"`
	FallbackDiscount float64              `yaml:"fallback_discount"`
	MinOverlap       int                  `yaml:"min_overlap"`
	Timeouts         ToolTimeouts         `yaml:"timeouts"`
	CircuitBreaker   CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ToolTimeouts bounds each tool invocation individually.
type ToolTimeouts struct {
	Calculator time.Duration `yaml:"calculator"`
	Retriever  time.Duration `yaml:"retriever"`
	WebSearch  time.Duration `yaml:"web_search"`
	Generation time.Duration `yaml:"generation"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "openai"
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

type VectorStoreConfig struct {
	Type        string        `yaml:"type"` // "qdrant" or "memory"
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	GRPCAddress string        `yaml:"grpc_address"`
	Timeout     time.Duration `yaml:"timeout"`
	TopK        int           `yaml:"top_k"`
	MinScore    float64       `yaml:"min_score"`
}

type WebSearchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	MaxResults      int           `yaml:"max_results"`
	MinSnippetChars int           `yaml:"min_snippet_chars"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RequestsPerMin  int           `yaml:"requests_per_minute"`
	Burst           int           `yaml:"burst"`
	DailyQuota      int64         `yaml:"daily_quota"`
}

type CatalogConfig struct {
	File            string        `yaml:"file"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
			MaxQueryLength:   4000,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "queryrouter",
			User:            "queryrouter",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Routing: RoutingConfig{
			RequestTimeout:   90 * time.Second,
			FallbackDiscount: 0.5,
			MinOverlap:       1,
			Timeouts: ToolTimeouts{
				Calculator: 250 * time.Millisecond,
				Retriever:  5 * time.Second,
				WebSearch:  5 * time.Second,
				Generation: 60 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				RecoveryInterval: 15 * time.Second,
			},
		},
		Generation: GenerationConfig{
			Provider:    "ollama",
			BaseURL:     "http://ollama:11434",
			Model:       "llama2",
			Temperature: 0.2,
			MaxTokens:   512,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			BaseURL:   "http://ollama:11434",
			Model:     "all-minilm",
			CacheSize: 1024,
		},
		VectorStore: VectorStoreConfig{
			Type:     "qdrant",
			URL:      "http://qdrant:6333",
			Timeout:  5 * time.Second,
			TopK:     3,
			MinScore: 0.35,
		},
		WebSearch: WebSearchConfig{
			Enabled:         true,
			BaseURL:         "http://searxng:8080",
			MaxResults:      3,
			MinSnippetChars: 50,
			AttemptTimeout:  2 * time.Second,
			RetryBackoff:    300 * time.Millisecond,
			RequestsPerMin:  30,
			Burst:           5,
			DailyQuota:      1000,
		},
		Catalog: CatalogConfig{
			File:            "collections.yaml",
			RefreshInterval: time.Minute,
		},
		Policy: PolicyConfig{
			Enabled:           false,
			BundlePath:        "policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
	}
}
