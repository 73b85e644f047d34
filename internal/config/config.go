package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from a yaml file with
// environment-variable overrides (RESEARCHD_ prefix).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Engine   EngineConfig   `mapstructure:"engine"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Research ResearchConfig `mapstructure:"research"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	HTTPPort    int `mapstructure:"http_port"`
	MetricsPort int `mapstructure:"metrics_port"`
	// Rate limit applied to create endpoints
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type EngineConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	DefaultModel   string `mapstructure:"default_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type PricingConfig struct {
	Path string `mapstructure:"path"`
}

type ResearchConfig struct {
	DefaultModel     string `mapstructure:"default_model"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BaseDelaySeconds int    `mapstructure:"base_delay_seconds"`
	SummaryMaxLength int    `mapstructure:"summary_max_length"`
}

type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads configuration from CONFIG_PATH (default ./config/researchd.yaml)
// and the environment. A missing config file is not an error; defaults and
// env vars still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RESEARCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/researchd.yaml"
	}
	if _, err := os.Stat(cfgPath); err == nil {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 2112)
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("postgres.host", "postgres")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "researchd")
	v.SetDefault("postgres.password", "researchd")
	v.SetDefault("postgres.database", "researchd")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.addr", "redis:6379")

	v.SetDefault("temporal.host_port", "temporal:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "researchd-tasks")

	v.SetDefault("engine.timeout_seconds", 600)

	v.SetDefault("llm.default_model", "gpt-4-turbo-preview")
	v.SetDefault("llm.timeout_seconds", 60)

	v.SetDefault("pricing.path", "./config/pricing.yaml")

	v.SetDefault("research.default_model", "gpt-4-turbo-preview")
	v.SetDefault("research.max_attempts", 3)
	v.SetDefault("research.base_delay_seconds", 60)
	v.SetDefault("research.summary_max_length", 1000)

	v.SetDefault("storage.upload_dir", "./data/uploads")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "researchd")
}
