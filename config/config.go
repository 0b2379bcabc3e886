// Package config provides configuration loading for bookshelf.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"bookshelf/library"
	"bookshelf/shelf"
)

// Config is the full bookshelf configuration. Every field has a default, so
// running without a config file works.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Lookup   LookupConfig   `yaml:"lookup" mapstructure:"lookup"`
	View     ViewConfig     `yaml:"view" mapstructure:"view"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`

	// SessionFile keeps the session token between runs. Empty disables it.
	SessionFile string `yaml:"session_file" mapstructure:"session_file"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type AuthConfig struct {
	SessionTTL          time.Duration `yaml:"session_ttl" mapstructure:"session_ttl" validate:"gt=0"`
	RequireVerification bool          `yaml:"require_verification" mapstructure:"require_verification"`
	VerifyRedirectURL   string        `yaml:"verify_redirect_url" mapstructure:"verify_redirect_url" validate:"omitempty,url"`
	ResetRedirectURL    string        `yaml:"reset_redirect_url" mapstructure:"reset_redirect_url" validate:"omitempty,url"`
	// bcrypt ignores everything past 72 bytes.
	MinPasswordLength int `yaml:"min_password_length" mapstructure:"min_password_length" validate:"min=6,max=72"`
}

// LookupConfig points at a Google Books compatible volumes API.
type LookupConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

type ViewConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce" validate:"gte=0"`
	PageSize int           `yaml:"page_size" mapstructure:"page_size" validate:"min=1"`
	PageStep int           `yaml:"page_step" mapstructure:"page_step" validate:"min=1"`
}

type StoreConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ManagerOptions maps the auth section onto store options.
func (c *Config) ManagerOptions() library.Options {
	return library.Options{
		SessionTTL:          c.Auth.SessionTTL,
		RequireVerification: c.Auth.RequireVerification,
		VerifyRedirectURL:   c.Auth.VerifyRedirectURL,
		ResetRedirectURL:    c.Auth.ResetRedirectURL,
	}
}

// ShelfOptions maps the view and auth sections onto shelf options.
func (c *Config) ShelfOptions() shelf.Options {
	return shelf.Options{
		MinPasswordLength: c.Auth.MinPasswordLength,
		FetchTimeout:      c.Store.Timeout,
		View: shelf.ViewOptions{
			Debounce: c.View.Debounce,
			PageSize: c.View.PageSize,
			PageStep: c.View.PageStep,
		},
	}
}

// Redacted renders the effective configuration as YAML with secrets masked.
func (c Config) Redacted() ([]byte, error) {
	if c.Lookup.APIKey != "" {
		c.Lookup.APIKey = "********"
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
