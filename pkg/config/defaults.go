package config

import (
	"strings"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyMountDefaults(&cfg.Mount)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

// applyStoreDefaults sets object store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Pool == "" {
		cfg.Pool = "default"
	}
	if cfg.Container == "" {
		cfg.Container = "default"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Defaults for all store types (also used for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/var/lib/objfs/badger"
	}
}

// applyMountDefaults sets mount defaults. The identity sentinel -1 is
// resolved against the process identity at mount time, not here.
func applyMountDefaults(cfg *MountConfig) {
	if cfg.UID == 0 && cfg.GID == 0 {
		// Distinguish "unset" from an explicit uid=0: the zero value maps
		// to the sentinel, root must be requested as an explicit 0 in the
		// config file alongside a non-zero gid or vice versa.
		cfg.UID = -1
		cfg.GID = -1
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:9155"
	}
}
