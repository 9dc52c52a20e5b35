package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for roledash-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, session key) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// DataDir is where per-role configuration, plans, and SQLite stores live.
	DataDir string `yaml:"data_dir" env:"DATA_DIR" env-default:"./custom_roles"`

	// SessionKey signs the opaque session cookie. Generate with: openssl rand -base64 32
	SessionKey string `yaml:"-" env:"SESSION_KEY"` // Secret - not in YAML

	// LLM holds the language model client configuration.
	LLM LLMConfig `yaml:"llm"`

	// Import holds dataset import tuning.
	Import ImportConfig `yaml:"import"`
}

// LLMConfig holds language model endpoint configuration.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`

	// Endpoint is the base URL for OpenAI-compatible providers.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`

	// Model is used for plan generation.
	Model string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`

	// InsightModel is used for narrative chart insights. Falls back to Model
	// when empty; insight generation tolerates a cheaper model.
	InsightModel string `yaml:"insight_model" env:"LLM_INSIGHT_MODEL" env-default:""`

	APIKey string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	// TimeoutSeconds bounds every individual LLM call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"120"`

	// Temperature for generation. Plans want low-variance output.
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`
}

// Timeout returns the per-call LLM timeout as a duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ImportConfig holds dataset import tuning.
type ImportConfig struct {
	// BatchSize is the number of rows inserted per transaction.
	BatchSize int `yaml:"batch_size" env:"IMPORT_BATCH_SIZE" env-default:"500"`

	// SourceTimeoutSeconds bounds each external-source call during import.
	SourceTimeoutSeconds int `yaml:"source_timeout_seconds" env:"IMPORT_SOURCE_TIMEOUT_SECONDS" env-default:"300"`
}

// SourceTimeout returns the per-call source timeout as a duration.
func (c *ImportConfig) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; environment variables alone suffice.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import batch_size must be positive, got %d", c.Import.BatchSize)
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}
