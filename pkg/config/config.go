// Package config loads, defaults, and validates the objfs configuration,
// and provides the factory that turns a store section into a connected
// object store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete objfs configuration.
//
// This structure captures all configurable aspects of the tool including:
//   - Logging configuration
//   - Object store selection and configuration (store-specific)
//   - Mount behavior (caching, locking, identity)
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (OBJFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration shape. The Config
// struct contains type-specific sections (store.memory, store.badger,
// store.s3) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Store specifies the object store type and type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Mount contains mount behavior settings
	Mount MountConfig `mapstructure:"mount"`

	// Metrics controls the Prometheus exposition endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// StoreConfig specifies object store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which object store implementation to use
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3"`

	// Pool and Container name the connection coordinates recorded in
	// exported mount blobs
	Pool      string `mapstructure:"pool" validate:"required"`
	Container string `mapstructure:"container" validate:"required"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// MountConfig contains mount behavior settings.
type MountConfig struct {
	// ReadOnly rejects every mutating operation
	ReadOnly bool `mapstructure:"read_only"`

	// NoCache disables the lookup cache
	NoCache bool `mapstructure:"no_cache"`

	// NoLock skips internal locking (single-threaded use only)
	NoLock bool `mapstructure:"no_lock"`

	// UID and GID override the identity recorded on new entries.
	// -1 means "use the current process identity".
	UID int64 `mapstructure:"uid" validate:"gte=-1,lte=4294967295"`
	GID int64 `mapstructure:"gid" validate:"gte=-1,lte=4294967295"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Enabled turns metric collection and exposition on
	Enabled bool `mapstructure:"enabled"`

	// Listen is the address the /metrics endpoint binds to
	Listen string `mapstructure:"listen"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (OBJFS_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the OBJFS_ prefix and underscores
	// Example: OBJFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("OBJFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "objfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "objfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
