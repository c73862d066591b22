// Package config provides configuration management for the gptbridge
// webhook service. It loads YAML configuration with environment variable
// expansion, applies environment overrides for secrets, and validates
// the result before the server starts.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Telegram       TelegramConfig       `yaml:"telegram"`
	LLM            LLMConfig            `yaml:"llm"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	KeepAlive      KeepAliveConfig      `yaml:"keep_alive"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response (default: 90s; must exceed a full retry sequence)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather. Use environment
	// variables (e.g. ${TELEGRAM_TOKEN}) rather than a literal value.
	Token string `yaml:"token"`

	// APIURL is the Bot API base URL. Only overridden in tests.
	APIURL string `yaml:"api_url"`

	// PublicURL is the externally reachable base URL of this service.
	// When set, the webhook is registered at PublicURL/webhook/{token}
	// on startup, and the keep-alive pinger targets PublicURL.
	PublicURL string `yaml:"public_url"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	// Provider specifies the LLM provider (e.g., "openai", "anthropic", "ollama")
	Provider string `yaml:"provider"`

	// Model is the name of the model to use (e.g., "gpt-4o-mini")
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API
	APIKey string `yaml:"api_key"`

	// SystemPrompt, when non-empty, is prepended to every completion
	SystemPrompt string `yaml:"system_prompt"`

	// MaxInputChars bounds the accepted user message length (default: 4000)
	MaxInputChars int `yaml:"max_input_chars"`

	// TrackTokens enables prompt token accounting via tiktoken.
	// Disabled by default since loading an encoding may fetch data.
	TrackTokens bool `yaml:"track_tokens"`
}

// RetryConfig defines the retry behavior for failed completion calls.
// Delays follow initial_delay * multiplier^(attempt-1), capped at
// max_delay, with up to 10% jitter added.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, first try included (default: 3)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry (default: 1s)
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay between retries (default: 30s)
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier scales the delay after each retry (default: 2)
	Multiplier float64 `yaml:"multiplier"`

	// AttemptTimeout bounds each individual completion call (default: 60s)
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// CircuitBreakerConfig controls the breaker wrapped around completion calls.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the circuit (default: 5)
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// ResetTimeout is the period of the open state until it becomes
	// half-open (default: 1m)
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// MaxRequests is the number of probe requests allowed through in the
	// half-open state (default: 1)
	MaxRequests uint32 `yaml:"max_requests"`
}

// KeepAliveConfig controls the self-ping loop that keeps free-tier
// hosting from idling the process.
type KeepAliveConfig struct {
	// Enabled turns the pinger on (default: false; enable on free tiers)
	Enabled bool `yaml:"enabled"`

	// Interval between pings (default: 14m, under typical 15m idle windows)
	Interval time.Duration `yaml:"interval"`

	// URL to ping. Defaults to the Telegram public URL when empty.
	URL string `yaml:"url"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// envOverrides mirrors the environment variables the service has always
// honored; any non-empty value wins over the YAML file.
type envOverrides struct {
	Token     string `env:"TELEGRAM_TOKEN"`
	APIKey    string `env:"OPENAI_API_KEY"`
	Model     string `env:"GPTS_MODEL_ID"`
	PublicURL string `env:"PUBLIC_URL"`
	Port      int    `env:"PORT"`
}

// DefaultConfig returns a configuration with documented defaults. The
// retry constants (3 attempts, 1s base delay doubling) are deliberate:
// they bound a worst-case request to roughly three attempt timeouts
// plus three seconds of backoff.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			MaxInputChars: 4000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       30 * time.Second,
			Multiplier:     2,
			AttemptTimeout: 60 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			MaxRequests:      1,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:  false,
			Interval: 14 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves environment variable references inside
// configuration strings. It supports standard ${VAR} substitution and
// the ${VAR:-default} default-value syntax.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]

			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}
		return os.Getenv(key)
	})
}

// Load loads configuration from an io.Reader. Values are layered:
// defaults, then the YAML document with ${VAR} expansion applied, then
// direct environment overrides for secrets, then validation.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	if o.Token != "" {
		c.Telegram.Token = o.Token
	}
	if o.APIKey != "" {
		c.LLM.APIKey = o.APIKey
	}
	if o.Model != "" {
		c.LLM.Model = o.Model
	}
	if o.PublicURL != "" {
		c.Telegram.PublicURL = o.PublicURL
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.Telegram.APIURL == "" {
		return fmt.Errorf("empty telegram api url")
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.MaxInputChars <= 0 {
		return fmt.Errorf("max input chars must be positive: %d", c.LLM.MaxInputChars)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay < 0 {
		return fmt.Errorf("negative retry initial delay: %v", c.Retry.InitialDelay)
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry max delay %v below initial delay %v", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1: %v", c.Retry.Multiplier)
	}
	if c.Retry.AttemptTimeout <= 0 {
		return fmt.Errorf("retry attempt timeout must be positive: %v", c.Retry.AttemptTimeout)
	}

	if c.KeepAlive.Enabled {
		if c.KeepAlive.Interval <= 0 {
			return fmt.Errorf("keep-alive interval must be positive: %v", c.KeepAlive.Interval)
		}
		if c.KeepAlive.URL == "" && c.Telegram.PublicURL == "" {
			return fmt.Errorf("keep-alive enabled but no URL configured")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// KeepAliveURL resolves the ping target, falling back to the public URL.
func (c *Config) KeepAliveURL() string {
	if c.KeepAlive.URL != "" {
		return c.KeepAlive.URL
	}
	return c.Telegram.PublicURL
}
