// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CredentialStrategy selects where the API key is resolved
type CredentialStrategy string

const (
	// StrategyClient resolves the key on the client through the fallback chain
	StrategyClient CredentialStrategy = "client"
	// StrategyServer keeps the key in the server's environment only
	StrategyServer CredentialStrategy = "server"
)

// EndpointTarget selects where identification requests are sent
type EndpointTarget string

const (
	TargetDirect EndpointTarget = "direct"
	TargetProxy  EndpointTarget = "proxy"
)

// Config holds all configuration for the server and the CLI
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Model configuration
	GeminiAPIKey   string        `yaml:"-"`
	GeminiModel    string        `yaml:"gemini_model"`
	GeminiBaseURL  string        `yaml:"gemini_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Credential resolution
	CredentialStrategy CredentialStrategy `yaml:"credential_strategy"`
	CredentialURL      string             `yaml:"credential_url"`
	StorePath          string             `yaml:"store_path"`
	Interactive        bool               `yaml:"interactive"`

	// Identification target
	EndpointTarget EndpointTarget `yaml:"endpoint_target"`
	ProxyURL       string         `yaml:"proxy_url"`

	// Server limits
	RateLimitPerHour      int    `yaml:"rate_limit_per_hour"`
	RateLimitBurst        int    `yaml:"rate_limit_burst"`
	MaxConcurrentUpstream int64  `yaml:"max_concurrent_upstream"`
	AllowedOrigin         string `yaml:"allowed_origin"`
	StaticDir             string `yaml:"static_dir"`
	ExposeAPIKey          bool   `yaml:"expose_api_key"`
	TrustProxy            bool   `yaml:"trust_proxy"`

	// Camera
	CameraURL string `yaml:"camera_url"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:                  "3000",
		LogLevel:              "info",
		GeminiModel:           "gemini-1.5-flash",
		RequestTimeout:        30 * time.Second,
		CredentialStrategy:    StrategyServer,
		StorePath:             defaultStorePath(),
		Interactive:           true,
		EndpointTarget:        TargetProxy,
		ProxyURL:              "http://localhost:3000",
		RateLimitPerHour:      100,
		RateLimitBurst:        10,
		MaxConcurrentUpstream: 8,
		AllowedOrigin:         "*",
	}
}

// Load reads .env (if present), then the YAML file named by PLANTID_CONFIG
// (if set), then environment variables. Later sources win.
func Load() (*Config, error) {
	// A missing .env is normal; system environment variables are used instead
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("PLANTID_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML configuration file into cfg
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", c.RequestTimeout)

	c.CredentialStrategy = CredentialStrategy(getEnv("CREDENTIAL_STRATEGY", string(c.CredentialStrategy)))
	c.CredentialURL = getEnv("CREDENTIAL_URL", c.CredentialURL)
	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.Interactive = getBoolEnv("INTERACTIVE", c.Interactive)

	c.EndpointTarget = EndpointTarget(getEnv("ENDPOINT_TARGET", string(c.EndpointTarget)))
	c.ProxyURL = getEnv("PROXY_URL", c.ProxyURL)

	c.RateLimitPerHour = getIntEnv("RATE_LIMIT_PER_HOUR", c.RateLimitPerHour)
	c.RateLimitBurst = getIntEnv("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.MaxConcurrentUpstream = int64(getIntEnv("MAX_CONCURRENT_UPSTREAM", int(c.MaxConcurrentUpstream)))
	c.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.AllowedOrigin)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.ExposeAPIKey = getBoolEnv("EXPOSE_API_KEY", c.ExposeAPIKey)
	c.TrustProxy = getBoolEnv("TRUST_PROXY", c.TrustProxy)

	c.CameraURL = getEnv("CAMERA_URL", c.CameraURL)
}

// Validate checks enumerated values and limits
func (c *Config) Validate() error {
	switch c.CredentialStrategy {
	case StrategyClient, StrategyServer:
	default:
		return fmt.Errorf("invalid credential strategy %q (want %q or %q)", c.CredentialStrategy, StrategyClient, StrategyServer)
	}

	switch c.EndpointTarget {
	case TargetDirect, TargetProxy:
	default:
		return fmt.Errorf("invalid endpoint target %q (want %q or %q)", c.EndpointTarget, TargetDirect, TargetProxy)
	}

	if c.EndpointTarget == TargetProxy && c.ProxyURL == "" {
		return fmt.Errorf("proxy_url is required when endpoint target is %q", TargetProxy)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RateLimitPerHour <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.MaxConcurrentUpstream <= 0 {
		return fmt.Errorf("max concurrent upstream must be positive")
	}
	return nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "plantid", "storage.json")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("45s") or plain seconds ("45")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
