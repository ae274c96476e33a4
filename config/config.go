package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/backend"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/specialist"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STUDYMESH"

// Model providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config is the complete runtime configuration.
type Config struct {
	App      string         `mapstructure:"app"`
	Model    ModelConfig    `mapstructure:"model"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	// Catalog is the path of an agent catalog; empty uses the built-in one.
	Catalog string `mapstructure:"catalog"`
}

// ModelConfig selects the language model backend.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	Name     string `mapstructure:"name"`
	APIKey   string `mapstructure:"api_key"`
	// Temperature <= 0 keeps the provider default.
	Temperature float64 `mapstructure:"temperature"`
}

// RetryConfig mirrors backend.RetryPolicy.
type RetryConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts"`
	ExponentialBase      float64       `mapstructure:"exponential_base"`
	InitialDelay         time.Duration `mapstructure:"initial_delay"`
	RetryableStatusCodes []int         `mapstructure:"retryable_status_codes"`
}

// AgentConfig tunes every model agent and composite.
type AgentConfig struct {
	MaxToolRounds      int `mapstructure:"max_tool_rounds"`
	MaxHistoryMessages int `mapstructure:"max_history_messages"`
	MaxParallelTools   int `mapstructure:"max_parallel_tools"`
	MaxConcurrency     int `mapstructure:"max_concurrency"`
	// RateLimit is backend requests per second across all agents (0: off).
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// BridgeConfig configures the sync bridge.
type BridgeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig locates the planner database. An empty path keeps planner
// records in memory.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var defaults = map[string]any{
	"app":                          "productivity_planner",
	"model.provider":               ProviderGemini,
	"model.name":                   "gemini-2.5-flash-lite",
	"model.api_key":                "",
	"model.temperature":            0.0,
	"retry.max_attempts":           5,
	"retry.exponential_base":       7.0,
	"retry.initial_delay":          time.Second,
	"retry.retryable_status_codes": []int{429, 500, 503, 504},
	"agent.max_tool_rounds":        agent.DefaultMaxToolRounds,
	"agent.max_history_messages":   20,
	"agent.max_parallel_tools":     1,
	"agent.max_concurrency":        0,
	"agent.rate_limit":             0.0,
	"agent.burst":                  1,
	"bridge.timeout":               2 * time.Minute,
	"log.level":                    "info",
	"log.format":                   "text",
	"database.path":                "",
	"server.addr":                  ":8080",
	"catalog":                      "",
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the configuration. path names an optional YAML file; when it
// is empty, ./studymesh.yaml is used if present.
func Load(path string) (*Config, error) {
	if err := loadDotEnvForConfig(path); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("studymesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Model.Provider = strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = providerKey(cfg.Model.Provider)
	}
	return &cfg, nil
}

func providerKey(provider string) string {
	var names []string
	switch provider {
	case ProviderGemini:
		names = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	case ProviderOpenAI:
		names = []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		names = []string{"ANTHROPIC_API_KEY"}
	}
	for _, n := range names {
		if key := os.Getenv(n); key != "" {
			return key
		}
	}
	return ""
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not one of gemini, openai, anthropic, mock", c.Model.Provider))
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Agent.MaxToolRounds < 1 {
		errs = append(errs, fmt.Errorf("agent.max_tool_rounds must be >= 1, got %d", c.Agent.MaxToolRounds))
	}
	if c.Agent.RateLimit < 0 {
		errs = append(errs, errors.New("agent.rate_limit must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the backend retry policy.
func (c *Config) RetryPolicy() backend.RetryPolicy {
	return backend.RetryPolicy{
		MaxAttempts:          c.Retry.MaxAttempts,
		ExponentialBase:      c.Retry.ExponentialBase,
		InitialDelay:         c.Retry.InitialDelay,
		RetryableStatusCodes: append([]int(nil), c.Retry.RetryableStatusCodes...),
	}
}

// RateLimiter returns the shared backend limiter, or nil when disabled.
func (c *Config) RateLimiter() *rate.Limiter {
	if c.Agent.RateLimit <= 0 {
		return nil
	}
	burst := c.Agent.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.Agent.RateLimit), burst)
}

// Logger builds the process logger.
func (c *Config) Logger() logging.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.NewSlogLogger(level, c.Log.Format, false)
}

// LoadCatalog returns the agent definitions of the catalog at path, or of
// the built-in catalog when path is empty.
func LoadCatalog(path string) ([]agent.Definition, error) {
	if path == "" {
		return specialist.ParseCatalog(specialist.DefaultCatalogYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	defs, err := specialist.ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return defs, nil
}
