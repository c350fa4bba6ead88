// ABOUTME: Configuration loading and parsing for the agora gateway.
// ABOUTME: YAML files with environment variable expansion, duration parsing, and validation.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agora configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Broker  BrokerConfig  `yaml:"broker"`
	Backend BackendConfig `yaml:"backend"`
	Chat    ChatConfig    `yaml:"chat"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// BrokerConfig selects and configures the message transport.
// Mode "rabbit" is the production transport; "memory" runs an in-process
// broker for development without RabbitMQ.
type BrokerConfig struct {
	Mode     string `yaml:"mode"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// BackendConfig configures the completion provider shared by all agents.
// Provider "openai" accepts any Chat-Completions-compatible base URL (LM
// Studio, vLLM); "anthropic" uses the Anthropic Messages API.
type BackendConfig struct {
	Provider     string  `yaml:"provider"`
	BaseURL      string  `yaml:"base_url"`
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int64   `yaml:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// ChatConfig tunes the orchestration policies.
type ChatConfig struct {
	KeepAliveInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	KeepAliveIntervalRaw string `yaml:"keepalive_interval"`

	StrictFilter StrictFilterConfig `yaml:"strict_filter"`
}

// StrictFilterConfig enables the optional stricter response admission policy.
type StrictFilterConfig struct {
	Enabled        bool     `yaml:"enabled"`
	MinLength      int      `yaml:"min_length"`
	BannedPatterns []string `yaml:"banned_patterns"`
	RejectTables   bool     `yaml:"reject_tables"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in the values a minimal config file may omit.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Broker.Mode == "" {
		c.Broker.Mode = "rabbit"
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "agora-chat"
	}
	if c.Backend.Provider == "" {
		c.Backend.Provider = "openai"
	}
	if c.Backend.Temperature == 0 {
		c.Backend.Temperature = 0.7
	}
	if c.Backend.MaxTokens == 0 {
		c.Backend.MaxTokens = 1024
	}
	if c.Chat.KeepAliveIntervalRaw == "" {
		c.Chat.KeepAliveIntervalRaw = "30s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	switch c.Broker.Mode {
	case "rabbit":
		if c.Broker.URL == "" {
			return fmt.Errorf("broker.url is required when broker.mode is %q", c.Broker.Mode)
		}
	case "memory":
	default:
		return fmt.Errorf("broker.mode must be \"rabbit\" or \"memory\", got %q", c.Broker.Mode)
	}

	switch c.Backend.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("backend.provider must be \"openai\" or \"anthropic\", got %q", c.Backend.Provider)
	}

	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func (c *Config) parseDurations() error {
	var err error

	if c.Chat.KeepAliveIntervalRaw != "" {
		c.Chat.KeepAliveInterval, err = time.ParseDuration(c.Chat.KeepAliveIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing keepalive_interval %q: %w", c.Chat.KeepAliveIntervalRaw, err)
		}
	}

	return nil
}
