package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full pipeline configuration, loaded once at process start.
type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider"`
	Search     SearchConfig     `mapstructure:"search"`
	Pools      PoolsConfig      `mapstructure:"pools"`
	Circuit    CircuitConfig    `mapstructure:"circuit"`
	Validation ValidationConfig `mapstructure:"validation"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Authority  AuthorityConfig  `mapstructure:"authority"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Output     OutputConfig     `mapstructure:"output"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ProviderConfig locates the text-generation service.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PricingPath    string        `mapstructure:"pricing_path"`
}

// SearchConfig locates the semantic-search service.
type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	TopK    int           `mapstructure:"top_k"`
	TTL     time.Duration `mapstructure:"cache_ttl"`
}

// PoolConfig bounds one logical client pool.
type PoolConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	RPM           int `mapstructure:"rpm"`
}

// PoolsConfig holds the per-purpose pool bounds.
type PoolsConfig struct {
	Search  PoolConfig `mapstructure:"search"`
	Content PoolConfig `mapstructure:"content"`
	Default PoolConfig `mapstructure:"default"`
}

// CircuitConfig parameterizes the per-pool circuit breakers.
type CircuitConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold"`
	MaxHalfOpen      uint32        `mapstructure:"max_half_open"`
	Interval         time.Duration `mapstructure:"interval"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// ValidationConfig gates draft approval.
type ValidationConfig struct {
	MinVerifiedRatio float64 `mapstructure:"min_verified_ratio"`
	MinLiveSources   int     `mapstructure:"min_live_sources"`
	MinCitations     int     `mapstructure:"min_citations"`
	SemanticCheck    bool    `mapstructure:"semantic_check"`
	// QuickMinLiveSources relaxes the live-source floor in quick mode.
	QuickMinLiveSources int `mapstructure:"quick_min_live_sources"`
}

// PipelineConfig controls the phase state machine.
type PipelineConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	WordTarget      int           `mapstructure:"word_target"`
	QuickWordTarget int           `mapstructure:"quick_word_target"`
}

// FetcherConfig bounds source fetching.
type FetcherConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	MaxBodyKB  int           `mapstructure:"max_body_kb"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// AuthorityConfig classifies source domains into credibility tiers.
// Domains absent from both lists are tier 3.
type AuthorityConfig struct {
	Tier1 []string `mapstructure:"tier1"`
	Tier2 []string `mapstructure:"tier2"`
}

// RedisConfig locates the knowledge-search cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig locates the run-history database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls artifact persistence.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// TemporalConfig locates the workflow engine.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// TracingConfig enables optional OTLP tracing.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// MetricsConfig controls the worker admin endpoint.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.timeout", "60s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.initial_backoff", "500ms")
	v.SetDefault("provider.max_backoff", "15s")
	v.SetDefault("provider.pricing_path", "config/models.yaml")

	v.SetDefault("search.timeout", "5s")
	v.SetDefault("search.top_k", 8)
	v.SetDefault("search.cache_ttl", "1h")

	v.SetDefault("pools.search.max_concurrent", 5)
	v.SetDefault("pools.content.max_concurrent", 3)
	v.SetDefault("pools.default.max_concurrent", 4)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.success_threshold", 2)
	v.SetDefault("circuit.max_half_open", 1)
	v.SetDefault("circuit.interval", "60s")
	v.SetDefault("circuit.cooldown", "30s")

	v.SetDefault("validation.min_verified_ratio", 0.95)
	v.SetDefault("validation.min_live_sources", 3)
	v.SetDefault("validation.min_citations", 5)
	v.SetDefault("validation.semantic_check", true)
	v.SetDefault("validation.quick_min_live_sources", 2)

	v.SetDefault("pipeline.max_iterations", 2)
	v.SetDefault("pipeline.task_timeout", "90s")
	v.SetDefault("pipeline.word_target", 1800)
	v.SetDefault("pipeline.quick_word_target", 900)

	v.SetDefault("fetcher.timeout", "15s")
	v.SetDefault("fetcher.max_retries", 2)
	v.SetDefault("fetcher.max_body_kb", 2048)
	v.SetDefault("fetcher.user_agent", "inkforge/1.0 (+https://github.com/inkforge/inkforge)")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("store.path", "inkforge.db")
	v.SetDefault("output.dir", "runs")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "inkforge-pipeline")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "inkforge")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("metrics.port", 8081)
}

// Load reads configuration from the given path, falling back to
// INKFORGE_CONFIG and then ./inkforge.yaml. A missing file is not an
// error; defaults plus INKFORGE_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("INKFORGE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("inkforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with. A missing
// provider URL is fatal at INIT; nothing is persisted for such runs.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = os.Getenv("INKFORGE_PROVIDER_URL")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required (set INKFORGE_PROVIDER_URL or config)")
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = os.Getenv("INKFORGE_SEARCH_URL")
	}
	if c.Validation.MinVerifiedRatio < 0 || c.Validation.MinVerifiedRatio > 1 {
		return fmt.Errorf("validation.min_verified_ratio must be in [0,1], got %v", c.Validation.MinVerifiedRatio)
	}
	if c.Pipeline.MaxIterations < 0 {
		return fmt.Errorf("pipeline.max_iterations must be >= 0")
	}
	if c.Pools.Search.MaxConcurrent <= 0 || c.Pools.Content.MaxConcurrent <= 0 || c.Pools.Default.MaxConcurrent <= 0 {
		return fmt.Errorf("pool max_concurrent values must be positive")
	}
	return nil
}
