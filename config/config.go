package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the content pipeline service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AuthRequired      bool          `mapstructure:"auth_required"`
	SchedulerEnabled  bool          `mapstructure:"scheduler_enabled"`
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
}

func (s ServerConfig) Validate() error {
	if s.AuthRequired && strings.TrimSpace(s.JWTSecret) == "" {
		return errors.New("server.jwt_secret required when server.auth_required is set")
	}
	return nil
}

// LLMConfig contains LLM provider settings and per-stage model routing.
type LLMConfig struct {
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Timeout time.Duration       `mapstructure:"timeout"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Routing RoutingConfig       `mapstructure:"routing"`
}

// LLMModel represents a specific model configuration.
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// RoutingConfig picks a configured model per pipeline stage.
type RoutingConfig struct {
	Research string `mapstructure:"research"`
	Writing  string `mapstructure:"writing"`
	Editing  string `mapstructure:"editing"`
	SEO      string `mapstructure:"seo"`
	Fallback string `mapstructure:"fallback"`
}

// ModelFor resolves the routed model for a stage, falling back when unset.
func (r RoutingConfig) ModelFor(stage string) string {
	var m string
	switch stage {
	case "research":
		m = r.Research
	case "write":
		m = r.Writing
	case "edit":
		m = r.Editing
	case "seo":
		m = r.SEO
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// ToolsConfig configures external tool adapters.
type ToolsConfig struct {
	Search SearchConfig `mapstructure:"search"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
}

// SearchConfig configures the web search capability.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper | brave
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FetchConfig configures the page scrape capability.
type FetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	MaxPages int           `mapstructure:"max_pages"`
}

// PipelineConfig controls orchestrator behaviour.
type PipelineConfig struct {
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
	MinEditedLength   int           `mapstructure:"min_edited_length"`
	MaxKeywords       int           `mapstructure:"max_keywords"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

func (p PipelineConfig) Validate() error {
	if p.MaxConcurrentRuns <= 0 {
		return errors.New("pipeline.max_concurrent_runs must be > 0")
	}
	if p.StageTimeout <= 0 {
		return errors.New("pipeline.stage_timeout must be > 0")
	}
	return nil
}

// StorageConfig contains optional persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the run archive. Leave empty to run in-memory only.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Configured reports whether any Postgres connection detail was provided.
func (p PostgresConfig) Configured() bool {
	return p.URL != "" || p.Host != "" || p.DBName != ""
}

// DSN builds a connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", errors.New("storage.postgres.host and storage.postgres.dbname required when url is not provided")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig configures the scheduler lock store.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Configured() bool { return r.Host != "" }

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file (JSON) and COPYDESK_* environment
// variables. A missing config file is not an error; defaults plus env apply.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":10080")
	viper.SetDefault("server.scheduler_interval", "1m")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("tools.search.provider", "serper")
	viper.SetDefault("tools.search.max_results", 5)
	viper.SetDefault("tools.search.timeout", "10s")
	viper.SetDefault("tools.fetch.timeout", "15s")
	viper.SetDefault("tools.fetch.max_chars", 20000)
	viper.SetDefault("tools.fetch.max_pages", 3)
	viper.SetDefault("pipeline.stage_timeout", "5m")
	viper.SetDefault("pipeline.min_edited_length", 200)
	viper.SetDefault("pipeline.max_keywords", 5)
	viper.SetDefault("pipeline.max_concurrent_runs", 8)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COPYDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
