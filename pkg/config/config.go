// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for querysmith-engine.
// Environment variables always override YAML values for fields that support
// both. Secrets (passwords, API keys) must only come from environment
// variables (yaml:"-" fields).
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Cache backing store (Redis). Optional: with no host configured the
	// engine falls back to an in-process store.
	Redis RedisConfig `yaml:"redis"`

	// Completion providers
	AI AIConfig `yaml:"ai"`

	// Query pipeline defaults
	Query QueryConfig `yaml:"query"`

	// Key for decrypting datasource credentials sent by the registry.
	// 32-byte base64 key or any passphrase (hashed to 32 bytes).
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// RedisConfig holds connection settings for the cache backing store.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AIConfig holds completion provider endpoints. A provider is considered
// configured when its model is set.
type AIConfig struct {
	// DefaultProvider is used when a request does not select one.
	DefaultProvider string `yaml:"default_provider" env:"AI_DEFAULT_PROVIDER" env-default:"openai"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig covers any OpenAI-compatible endpoint (OpenAI, vLLM, Ollama).
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"OPENAI_MODEL" env-default:""`
	APIKey  string `yaml:"-" env:"OPENAI_API_KEY"`
}

// IsAvailable returns true if the OpenAI-compatible provider is configured.
func (c *OpenAIConfig) IsAvailable() bool { return c.Model != "" }

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Model  string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:""`
	APIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
}

// IsAvailable returns true if the Anthropic provider is configured.
func (c *AnthropicConfig) IsAvailable() bool { return c.Model != "" }

// QueryConfig holds pipeline defaults.
type QueryConfig struct {
	// RowLimit caps result sizes injected by the safety guard.
	RowLimit int `yaml:"row_limit" env:"QUERY_ROW_LIMIT" env-default:"1000"`
	// MaxRetries is the default regeneration budget after a failed attempt.
	MaxRetries int `yaml:"max_retries" env:"QUERY_MAX_RETRIES" env-default:"2"`
	// SampleRows bounds sample-data fetches used for prompt context.
	SampleRows int `yaml:"sample_rows" env:"QUERY_SAMPLE_ROWS" env-default:"5"`
	// CacheTTLMinutes is the default result-cache lifetime.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"QUERY_CACHE_TTL_MINUTES" env-default:"60"`
	// TimeoutSeconds bounds a single query execution or completion call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml does not exist, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}
