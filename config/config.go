package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the collector.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	News      NewsConfig      `mapstructure:"news"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the model provider configuration.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`       // tool-use loop
	SmallModel     string        `mapstructure:"small_model"` // merge + extraction
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// NewsConfig contains the collection run settings.
type NewsConfig struct {
	TopicsFile          string         `mapstructure:"topics_file"`
	OutputDir           string         `mapstructure:"output_dir"`
	DestFile            string         `mapstructure:"dest_file"`
	SimilarityThreshold float64        `mapstructure:"similarity_threshold"`
	MaxItemsPerTopic    int            `mapstructure:"max_items_per_topic"`
	MaxToolCalls        int            `mapstructure:"max_tool_calls"`
	RecencyDays         map[string]int `mapstructure:"recency_days"` // per-category overrides
}

// SearchConfig contains the search/fetch tool settings.
type SearchConfig struct {
	Brave      BraveConfig      `mapstructure:"brave"`
	DuckDuckGo DuckDuckGoConfig `mapstructure:"duckduckgo"`
	ReadPage   ReadPageConfig   `mapstructure:"read_page"`
}

// BraveConfig contains Brave Search API settings.
type BraveConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Count       int           `mapstructure:"count"`
	Freshness   string        `mapstructure:"freshness"` // pd, pw, pm, py
	MaxRetries  int           `mapstructure:"max_retries"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DuckDuckGoConfig contains DuckDuckGo search settings.
type DuckDuckGoConfig struct {
	MaxResults int           `mapstructure:"max_results"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ReadPageConfig contains article extraction settings.
type ReadPageConfig struct {
	MaxChars int           `mapstructure:"max_chars"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains optional storage settings.
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains the optional embedding-cache connection settings.
// The cache is enabled only when a host is set.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig contains telemetry and monitoring settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MetricsPort  int  `mapstructure:"metrics_port"`
	CostTracking bool `mapstructure:"cost_tracking"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty path falls back to collector_config.yaml in ./config or the working
// directory; defaults apply when no file is found.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("collector_config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NEWSCOLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "30s")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.small_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-large")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 16000)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("news.topics_file", "")
	v.SetDefault("news.output_dir", "./data/collections")
	v.SetDefault("news.similarity_threshold", 0.95)
	v.SetDefault("news.max_items_per_topic", 20)
	v.SetDefault("news.max_tool_calls", 10)

	v.SetDefault("search.brave.count", 8)
	v.SetDefault("search.brave.freshness", "pw")
	v.SetDefault("search.brave.max_retries", 3)
	v.SetDefault("search.brave.min_interval", "1500ms")
	v.SetDefault("search.brave.timeout", "30s")
	v.SetDefault("search.duckduckgo.max_results", 5)
	v.SetDefault("search.duckduckgo.base_delay", "15s")
	v.SetDefault("search.duckduckgo.max_retries", 5)
	v.SetDefault("search.duckduckgo.timeout", "30s")
	v.SetDefault("search.read_page.max_chars", 20000)
	v.SetDefault("search.read_page.timeout", "15s")

	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")
	v.SetDefault("storage.redis.cache_ttl", "48h")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.cost_tracking", true)
	v.SetDefault("telemetry.periodic_logs", false)
}

// overrideFromEnv maps the conventional API-key variables onto the config.
func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		v.Set("llm.api_key", key)
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		v.Set("search.brave.api_key", key)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("storage.redis.host", host)
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		v.Set("storage.redis.password", pass)
	}
}

func validate(cfg *Config) error {
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("llm.provider must be configured")
	}
	if cfg.News.SimilarityThreshold < 0 || cfg.News.SimilarityThreshold > 1 {
		return fmt.Errorf("news.similarity_threshold must be in [0,1], got %v", cfg.News.SimilarityThreshold)
	}
	if cfg.News.MaxToolCalls < 0 {
		return fmt.Errorf("news.max_tool_calls must be >= 0")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}
