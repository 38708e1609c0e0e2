// Package config loads service configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/brainapi/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `koanf:"cors_origins"`

	// RefreshTimeout bounds a single refresh issued through the HTTP surface.
	RefreshTimeout time.Duration `koanf:"refresh_timeout" validate:"gt=0"`

	// RefreshRateLimit is requests per second on the refresh route; 0 disables it.
	RefreshRateLimit float64 `koanf:"refresh_rate_limit" validate:"gte=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type UpstreamConfig struct {
	BaseURL  string `koanf:"base_url" validate:"required,url"`
	Path     string `koanf:"path" validate:"required,startswith=/"`
	Query    string `koanf:"query" validate:"required"`
	PageSize int    `koanf:"page_size" validate:"min=1"`
	Page     int    `koanf:"page" validate:"min=0"`

	// MaxBodyBytes caps how much of an upstream response is read.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1"`

	// Consecutive transport failures before the circuit opens; 0 disables
	// the breaker so every refresh reaches the upstream.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// SearchURL builds the fetch target for the comtrade search endpoint.
func (u UpstreamConfig) SearchURL() string {
	q := url.Values{}
	q.Set("q", u.Query)
	q.Set("pp", fmt.Sprint(u.PageSize))
	q.Set("p", fmt.Sprint(u.Page))
	return strings.TrimRight(u.BaseURL, "/") + u.Path + "?" + q.Encode()
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3002,
			CORSOrigins:      []string{"http://localhost:8080"},
			RefreshTimeout:   30 * time.Second,
			RefreshRateLimit: 0,
			ShutdownTimeout:  10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "https://brains.tradingeconomics.com",
			Path:            "/v2/search/comtrade",
			Query:           "ukraine",
			PageSize:        50,
			Page:            0,
			MaxBodyBytes:    16 << 20,
			BreakerFailures: 0,
			BreakerTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with precedence ENV > file > defaults.
// An explicit path takes priority over PathEnvVar and DefaultPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and reports the offending keys.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice keys.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_host":          "server.host",
	"http_port":          "server.port",
	"cors_origins":       "server.cors_origins",
	"refresh_timeout":    "server.refresh_timeout",
	"refresh_rate_limit": "server.refresh_rate_limit",
	"shutdown_timeout":   "server.shutdown_timeout",

	// BASE_URL is the name the upstream host has always been configured with.
	"base_url":           "upstream.base_url",
	"upstream_path":      "upstream.path",
	"upstream_query":     "upstream.query",
	"upstream_page_size": "upstream.page_size",
	"upstream_page":      "upstream.page",
	"upstream_max_body":  "upstream.max_body_bytes",
	"breaker_failures":   "upstream.breaker_failures",
	"breaker_timeout":    "upstream.breaker_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables to config keys and
// drops everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
