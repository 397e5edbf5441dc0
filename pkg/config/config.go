package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the config file read when SOURCEGRAPH_CONFIG is unset
	DefaultConfigPath = "config.json"

	defaultSourcegraphURL = "http://localhost:7080"
	defaultTimeoutSeconds = 30
)

// Config holds all application configuration
type Config struct {
	Sourcegraph SourcegraphConfig
	Check       CheckConfig
	Logging     LoggingConfig
	OTEL        OTELConfig
}

// SourcegraphConfig holds the search backend connection settings
type SourcegraphConfig struct {
	URL            string
	AccessToken    string
	TimeoutSeconds int
}

// CheckConfig holds connectivity check settings
type CheckConfig struct {
	CodeQuery          string
	SymbolQuery        string
	MaxResults         int
	StepTimeoutSeconds int
	SkipSymbols        bool
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string
	Env   string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// fileConfig mirrors config.json. yaml.v3 parses JSON documents as well.
type fileConfig struct {
	SourcegraphURL string `yaml:"sourcegraph_url"`
	AccessToken    string `yaml:"access_token"`
	Timeout        int    `yaml:"timeout"`
}

// LoadWithFile loads configuration from .env, the config file and environment
// variables. An empty path falls back to $SOURCEGRAPH_CONFIG, then config.json.
func LoadWithFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = getEnv("SOURCEGRAPH_CONFIG", DefaultConfigPath)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration using the given config file. Environment
// variables take precedence over file values.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Sourcegraph.URL = strings.TrimRight(getEnv("SOURCEGRAPH_URL", cfg.Sourcegraph.URL), "/")
	cfg.Sourcegraph.AccessToken = getEnv("SOURCEGRAPH_TOKEN", cfg.Sourcegraph.AccessToken)
	cfg.Sourcegraph.TimeoutSeconds = getEnvAsInt("SOURCEGRAPH_TIMEOUT", cfg.Sourcegraph.TimeoutSeconds)

	cfg.Check.CodeQuery = getEnv("CHECK_CODE_QUERY", cfg.Check.CodeQuery)
	cfg.Check.SymbolQuery = getEnv("CHECK_SYMBOL_QUERY", cfg.Check.SymbolQuery)
	cfg.Check.SkipSymbols = getEnvAsBool("CHECK_SKIP_SYMBOLS", cfg.Check.SkipSymbols)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Env = getEnv("ENV", cfg.Logging.Env)

	cfg.OTEL.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.OTEL.ServiceName)
	cfg.OTEL.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", cfg.OTEL.ServiceVersion)
	cfg.OTEL.Endpoint = getEnv("OTEL_ENDPOINT", cfg.OTEL.Endpoint)
	cfg.OTEL.Enabled = getEnvAsBool("OTEL_ENABLED", cfg.OTEL.Enabled)

	return cfg, nil
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Sourcegraph: SourcegraphConfig{
			URL:            defaultSourcegraphURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Check: CheckConfig{
			CodeQuery:          "function",
			SymbolQuery:        "main",
			MaxResults:         3,
			StepTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "warn",
			Env:   "development",
		},
		OTEL: OTELConfig{
			ServiceName:    "sourcegraph-mcp-check",
			ServiceVersion: "1.0.0",
		},
	}
}

// HasToken reports whether an access token is configured
func (c *SourcegraphConfig) HasToken() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Timeout returns the request timeout as a duration
func (c *SourcegraphConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StepTimeout returns the per-search timeout as a duration
func (c *CheckConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}

// GraphQLEndpoint returns the GraphQL API URL
func (c *SourcegraphConfig) GraphQLEndpoint() string {
	return fmt.Sprintf("%s/.api/graphql", strings.TrimRight(c.URL, "/"))
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.SourcegraphURL != "" {
		c.Sourcegraph.URL = fc.SourcegraphURL
	}
	if fc.AccessToken != "" {
		c.Sourcegraph.AccessToken = fc.AccessToken
	}
	if fc.Timeout > 0 {
		c.Sourcegraph.TimeoutSeconds = fc.Timeout
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
