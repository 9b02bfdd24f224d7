// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

// Package config loads and validates the orchestrator configuration from
// YAML, environment variables (prefix COURSECHAT_), and defaults.
package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// Config is the top-level CourseChat configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Catalog    CatalogConfig             `mapstructure:"catalog"`
	Sessions   SessionsConfig            `mapstructure:"sessions"`
	Storage    StorageConfig             `mapstructure:"storage"`
}

// NetworkingConfig controls how the orchestrator listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
// APIKey may be a keyring://service/key URI resolved at startup.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig controls model selection and failover.
type ModelsConfig struct {
	Default     string   `mapstructure:"default"`
	Failover    []string `mapstructure:"failover"`
	Temperature *float32 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// CatalogConfig points at the upstream course catalog REST API.
type CatalogConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	WebBaseURL   string        `mapstructure:"web_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// SessionsConfig controls conversation session behavior.
type SessionsConfig struct {
	IdleTTL             time.Duration `mapstructure:"idle_ttl"`
	EvictInterval       time.Duration `mapstructure:"evict_interval"`
	ActiveWindow        int           `mapstructure:"active_window"`
	MaxToolRounds       int           `mapstructure:"max_tool_rounds"`
	MaxToolCallsPerTurn int           `mapstructure:"max_tool_calls_per_turn"`
}

// StorageConfig selects the session store backend and audit log location.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	AuditPath string `mapstructure:"audit_path"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix COURSECHAT_).
func Load(path string) (*Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, ccerr.Errorf(ccerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// NewViper returns a Viper instance pre-loaded with defaults and environment
// binding, so callers can layer a config file and secret resolution on top.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)
	return v
}

// SetDefaults installs the built-in defaults on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8090")
	v.SetDefault("models.default", "openai/gpt-4.1-mini")
	v.SetDefault("models.max_tokens", 2048)
	v.SetDefault("catalog.base_url", "http://localhost:8080")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.max_retries", 2)
	v.SetDefault("catalog.retry_backoff", "500ms")
	v.SetDefault("sessions.idle_ttl", "30m")
	v.SetDefault("sessions.evict_interval", "5m")
	v.SetDefault("sessions.active_window", 50)
	v.SetDefault("sessions.max_tool_rounds", 4)
	v.SetDefault("sessions.max_tool_calls_per_turn", 10)
	v.SetDefault("storage.backend", "memory")
}

// SetupEnv binds COURSECHAT_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("COURSECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates a fully layered Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateCatalog()...)
	errs = append(errs, c.validateSessions()...)
	errs = append(errs, c.validateStorage()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	check := func(label, ref string) {
		if !strings.Contains(ref, "/") {
			errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
				"config: %s must be in \"provider/model\" format, got %q", label, ref))
			return
		}
		// Only cross-reference providers when the providers section exists.
		// A nil map means defaults only, which is valid.
		if c.Providers != nil {
			name := providerFromModel(ref)
			if _, ok := c.Providers[name]; !ok {
				errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
					"config: %s %q references provider %q which is not configured", label, ref, name))
			}
		}
	}

	if c.Models.Default == "" {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue, "config: models.default must not be empty"))
	} else {
		check("models.default", c.Models.Default)
	}
	for i, ref := range c.Models.Failover {
		check("models.failover["+strconv.Itoa(i)+"]", ref)
	}

	if c.Models.MaxTokens <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: models.max_tokens must be greater than 0, got %d", c.Models.MaxTokens))
	}

	return errs
}

func (c *Config) validateCatalog() []error {
	var errs []error

	if c.Catalog.BaseURL == "" {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue, "config: catalog.base_url must not be empty"))
	} else if u, err := url.Parse(c.Catalog.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: catalog.base_url must be an absolute URL, got %q", c.Catalog.BaseURL))
	}

	if c.Catalog.Timeout <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: catalog.timeout must be greater than 0, got %s", c.Catalog.Timeout))
	}
	if c.Catalog.MaxRetries < 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: catalog.max_retries must not be negative, got %d", c.Catalog.MaxRetries))
	}
	if c.Catalog.RetryBackoff <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: catalog.retry_backoff must be greater than 0, got %s", c.Catalog.RetryBackoff))
	}

	return errs
}

func (c *Config) validateSessions() []error {
	var errs []error

	if c.Sessions.IdleTTL <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: sessions.idle_ttl must be greater than 0, got %s", c.Sessions.IdleTTL))
	}
	if c.Sessions.EvictInterval <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: sessions.evict_interval must be greater than 0, got %s", c.Sessions.EvictInterval))
	}
	if c.Sessions.ActiveWindow <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: sessions.active_window must be greater than 0, got %d", c.Sessions.ActiveWindow))
	}
	if c.Sessions.MaxToolRounds <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: sessions.max_tool_rounds must be greater than 0, got %d", c.Sessions.MaxToolRounds))
	}
	if c.Sessions.MaxToolCallsPerTurn <= 0 {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: sessions.max_tool_calls_per_turn must be greater than 0, got %d", c.Sessions.MaxToolCallsPerTurn))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, ccerr.Errorf(ccerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [memory], got %q", c.Storage.Backend))
	}

	return errs
}

// providerFromModel extracts the provider prefix from a "provider/model" string.
func providerFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
