package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	fileName  = "bookshelf"
	envPrefix = "BOOKSHELF"
)

// Load reads configFile, or the first bookshelf.yaml/.yml found in the
// working directory or ~/.bookshelf, applies BOOKSHELF_* environment
// overrides and validates the result. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := newViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	} else {
		// No search paths: ReadInConfig reports ConfigFileNotFoundError.
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
	}

	// BOOKSHELF_LOOKUP_API_KEY overrides lookup.api_key.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// setDefaults registers every key, which also makes AutomaticEnv apply to
// keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "bookshelf.db")
	v.SetDefault("session_file", ".bookshelf_session")

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.require_verification", false)
	v.SetDefault("auth.verify_redirect_url", "")
	v.SetDefault("auth.reset_redirect_url", "")
	v.SetDefault("auth.min_password_length", 6)

	v.SetDefault("lookup.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("lookup.api_key", "")
	v.SetDefault("lookup.timeout", 10*time.Second)

	v.SetDefault("view.debounce", 300*time.Millisecond)
	v.SetDefault("view.page_size", 12)
	v.SetDefault("view.page_step", 8)

	v.SetDefault("store.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigFileInPaths([]string{".", filepath.Join(home, ".bookshelf")})
}

// findConfigFileInPaths requires an explicit extension so the bookshelf
// binary itself is never picked up.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, fileName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
