package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Development = "development"
	Staging     = "staging"
	Production  = "production"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string        `yaml:"server_address"`
	Environment   string        `yaml:"environment"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`

	// Vision provider
	AnthropicAPIKey      string        `yaml:"-"`
	APIKeyPrefix         string        `yaml:"api_key_prefix"`
	ProviderURL          string        `yaml:"provider_url"`
	Model                string        `yaml:"model"`
	APIVersion           string        `yaml:"api_version"`
	MaxTokens            int           `yaml:"max_tokens"`
	ProviderTimeout      time.Duration `yaml:"provider_timeout"`
	AnalysisPrompt       string        `yaml:"analysis_prompt"`
	EnableCircuitBreaker bool          `yaml:"enable_circuit_breaker"`

	// Share image fonts; empty selects the embedded Go font
	FontPath     string `yaml:"font_path"`
	BoldFontPath string `yaml:"bold_font_path"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// CORS
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Observability
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`

	// ConfigFile is the optional YAML file layered under the environment.
	ConfigFile string `yaml:"-"`
	HotReload  bool   `yaml:"hot_reload"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		ServerAddress: ":8080",
		Environment:   Development,
		MaxBodyBytes:  10 << 20,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  90 * time.Second,

		APIKeyPrefix:    "sk-ant-",
		ProviderURL:     "https://api.anthropic.com/v1/messages",
		Model:           "claude-sonnet-4-20250514",
		APIVersion:      "2023-06-01",
		MaxTokens:       1000,
		ProviderTimeout: 60 * time.Second,

		LogLevel: "info",

		EnableCORS:     true,
		AllowedOrigins: []string{"*"},

		EnableMetrics: true,
		EnableTracing: false,
		OTLPEndpoint:  "localhost:4317",
	}
}

// LoadConfig loads configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing priority.
// A missing ANTHROPIC_API_KEY is not an error here; the relay reports it
// per request.
func LoadConfig() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is LoadConfig with an explicit YAML path; an empty path skips
// the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	cfg.ConfigFile = path
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes)))
	c.ReadTimeout = getEnvDuration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)

	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.APIKeyPrefix = getEnv("ANTHROPIC_API_KEY_PREFIX", c.APIKeyPrefix)
	c.ProviderURL = getEnv("ANTHROPIC_API_URL", c.ProviderURL)
	c.Model = getEnv("ANTHROPIC_MODEL", c.Model)
	c.APIVersion = getEnv("ANTHROPIC_VERSION", c.APIVersion)
	c.MaxTokens = getEnvInt("ANTHROPIC_MAX_TOKENS", c.MaxTokens)
	c.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.AnalysisPrompt = getEnv("ANALYSIS_PROMPT", c.AnalysisPrompt)
	c.EnableCircuitBreaker = getEnvBool("ENABLE_CIRCUIT_BREAKER", c.EnableCircuitBreaker)

	c.FontPath = getEnv("FONT_PATH", c.FontPath)
	c.BoldFontPath = getEnv("BOLD_FONT_PATH", c.BoldFontPath)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)

	c.HotReload = getEnvBool("CONFIG_HOT_RELOAD", c.HotReload || c.IsDevelopment())
}

// Validate checks that the configuration can serve requests
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("invalid ENVIRONMENT %q", c.Environment)
	}
	if c.ServerAddress == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ProviderURL == "" {
		return fmt.Errorf("ANTHROPIC_API_URL is required")
	}
	if c.EnableTracing && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
