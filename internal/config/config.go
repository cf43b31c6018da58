// Package config loads the catalog browser configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/browser"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/detail"
	"github.com/Sternrassler/catalog-sync/pkg/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the public catalog the browser was built against.
const DefaultBaseURL = "https://nestjs-pokedex-api.vercel.app"

// Config holds the application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Detail  DetailConfig  `yaml:"detail"`
	Log     LogConfig     `yaml:"log"`
}

// CatalogConfig describes the remote catalog.
type CatalogConfig struct {
	BaseURL   string        `yaml:"base_url"`
	ListPath  string        `yaml:"list_path,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// RedisConfig enables the response cache when URL is set. URL is either a
// redis:// URL or a host:port address.
type RedisConfig struct {
	URL string `yaml:"url,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// SessionConfig holds pagination and scroll settings.
type SessionConfig struct {
	PageSize      int           `yaml:"page_size"`
	RecoveryDelay time.Duration `yaml:"recovery_delay"`
	Margin        float64       `yaml:"margin"`
	Debounce      time.Duration `yaml:"debounce"`
}

// DetailConfig holds the detail retry policy.
type DetailConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryStep   time.Duration `yaml:"retry_step"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	session := browser.DefaultConfig()
	retry := detail.DefaultRetryConfig()
	clientCfg := client.DefaultConfig(DefaultBaseURL)

	return &Config{
		Catalog: CatalogConfig{
			BaseURL:   DefaultBaseURL,
			ListPath:  clientCfg.ListPath,
			UserAgent: clientCfg.UserAgent,
			Timeout:   clientCfg.Timeout,
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Session: SessionConfig{
			PageSize:      session.PageSize,
			RecoveryDelay: session.RecoveryDelay,
			Margin:        session.Margin,
			Debounce:      session.Debounce,
		},
		Detail: DetailConfig{
			MaxAttempts: retry.MaxAttempts,
			RetryStep:   retry.Step,
		},
		Log: LogConfig{Level: string(logging.LevelInfo)},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("CATALOG_LIST_PATH"); v != "" {
		c.Catalog.ListPath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CATALOG_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CATALOG_PAGE_SIZE: %w", err)
		}
		c.Session.PageSize = n
	}
	return nil
}

// Validate checks the configuration for values the components reject.
func (c *Config) Validate() error {
	var errs []error

	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("catalog.base_url must be http(s) (got %q)", c.Catalog.BaseURL))
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535 (got %q)", c.Server.Port))
	}
	if c.Session.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("session.page_size must be positive (got %d)", c.Session.PageSize))
	}
	if c.Session.RecoveryDelay <= 0 {
		errs = append(errs, errors.New("session.recovery_delay must be positive"))
	}
	if c.Session.Debounce < 0 {
		errs = append(errs, errors.New("session.debounce must not be negative"))
	}
	if c.Detail.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("detail.max_attempts must be at least 1 (got %d)", c.Detail.MaxAttempts))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// RedisOptions returns connection options, or nil when Redis is disabled.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	if strings.Contains(c.Redis.URL, "://") {
		opts, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.Redis.URL}, nil
}

// ClientConfig returns the catalog client configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.Catalog.BaseURL)
	if c.Catalog.ListPath != "" {
		cfg.ListPath = c.Catalog.ListPath
	}
	if c.Catalog.UserAgent != "" {
		cfg.UserAgent = c.Catalog.UserAgent
	}
	if c.Catalog.Timeout > 0 {
		cfg.Timeout = c.Catalog.Timeout
	}
	cfg.Redis = rdb
	return cfg
}

// SessionConfig returns the browsing session configuration.
func (c *Config) SessionConfig() browser.Config {
	return browser.Config{
		PageSize:      c.Session.PageSize,
		RecoveryDelay: c.Session.RecoveryDelay,
		Margin:        c.Session.Margin,
		Debounce:      c.Session.Debounce,
	}
}

// RetryConfig returns the detail retry policy.
func (c *Config) RetryConfig() detail.RetryConfig {
	return detail.RetryConfig{
		MaxAttempts: c.Detail.MaxAttempts,
		Step:        c.Detail.RetryStep,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	cfg.Pretty = c.Log.Pretty
	return cfg
}
