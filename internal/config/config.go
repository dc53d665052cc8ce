package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the hostdex gateway configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Auth    AuthConfig    `yaml:"auth"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// Backend drivers.
const (
	DriverElasticsearch = "elasticsearch"
	DriverOpenSearch    = "opensearch"
	DriverMemory        = "memory"
)

// BackendConfig holds search backend connection settings.
type BackendConfig struct {
	Driver             string   `yaml:"driver"` // elasticsearch (default), opensearch, memory
	Addrs              []string `yaml:"addrs"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	APIKey             string   `yaml:"api_key"`
	MaxRetries         int      `yaml:"max_retries"`
	RequestTimeoutSec  int      `yaml:"request_timeout_sec"`
	ReadinessTimeout   int      `yaml:"readiness_timeout_sec"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// User store drivers.
const (
	UserStoreRedis  = "redis"
	UserStoreValkey = "valkey"
	UserStoreStatic = "static"
)

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string          `yaml:"jwt_secret"`
	Issuer    string          `yaml:"issuer"`
	Audience  string          `yaml:"audience"`
	LeewaySec int             `yaml:"leeway_sec"`
	UserStore UserStoreConfig `yaml:"user_store"`
}

// UserStoreConfig selects where token subjects are resolved.
type UserStoreConfig struct {
	Driver           string          `yaml:"driver"` // redis, valkey, static (default)
	Addrs            []string        `yaml:"addrs"`
	Username         string          `yaml:"username"`
	Password         string          `yaml:"password"`
	DB               int             `yaml:"db"`
	TLS              bool            `yaml:"tls"`
	KeyPrefix        string          `yaml:"key_prefix"`
	ReadinessTimeout int             `yaml:"readiness_timeout_sec"`
	Users            map[string]bool `yaml:"users"` // static driver: id -> active
}

// IngestConfig holds bulk indexing settings.
type IngestConfig struct {
	Workers    int    `yaml:"workers"`
	FlushBytes int    `yaml:"flush_bytes"`
	Refresh    string `yaml:"refresh"` // "", "true", "false", "wait_for"
}

// SearchConfig holds query settings.
type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverElasticsearch
	}
	if c.Backend.MaxRetries <= 0 {
		c.Backend.MaxRetries = 3
	}
	if c.Backend.RequestTimeoutSec <= 0 {
		c.Backend.RequestTimeoutSec = 30
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 30
	}
	if c.Auth.UserStore.Driver == "" {
		c.Auth.UserStore.Driver = UserStoreStatic
	}
	if c.Auth.UserStore.KeyPrefix == "" {
		c.Auth.UserStore.KeyPrefix = "hostdex:user:"
	}
	if c.Auth.UserStore.ReadinessTimeout <= 0 {
		c.Auth.UserStore.ReadinessTimeout = 10
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 2
	}
	if c.Ingest.FlushBytes <= 0 {
		c.Ingest.FlushBytes = 5 << 20
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Backend.Driver {
	case DriverElasticsearch, DriverOpenSearch:
		if len(c.Backend.Addrs) == 0 {
			return fmt.Errorf("backend.addrs is required for driver %q", c.Backend.Driver)
		}
		if c.Backend.APIKey != "" && c.Backend.Username != "" {
			return fmt.Errorf("backend.api_key and backend.username are mutually exclusive")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("backend.driver must be elasticsearch, opensearch or memory, got %q", c.Backend.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	switch c.Auth.UserStore.Driver {
	case UserStoreRedis, UserStoreValkey:
		if len(c.Auth.UserStore.Addrs) == 0 {
			return fmt.Errorf("auth.user_store.addrs is required for driver %q", c.Auth.UserStore.Driver)
		}
	case UserStoreStatic:
	default:
		return fmt.Errorf("auth.user_store.driver must be redis, valkey or static, got %q", c.Auth.UserStore.Driver)
	}

	switch c.Ingest.Refresh {
	case "", "true", "false", "wait_for":
	default:
		return fmt.Errorf("ingest.refresh must be true, false or wait_for, got %q", c.Ingest.Refresh)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
