package config

import (
	"strings"
	"testing"
)

func defaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := defaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidStoreType(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Type = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown store type")
	}
}

func TestValidate_MissingConnection(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Pool = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for empty pool")
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Type = "badger"
	cfg.Store.Badger = map[string]any{"db_path": ""}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for badger without db_path")
	}
	if !strings.Contains(err.Error(), "db_path") {
		t.Errorf("Expected 'db_path' error, got: %v", err)
	}
}

func TestValidate_BadgerInMemoryNeedsNoPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Type = "badger"
	cfg.Store.Badger = map[string]any{"in_memory": true}

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected in-memory badger without db_path to validate, got: %v", err)
	}
}

func TestValidate_S3RequiresBucketAndRegion(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Type = "s3"
	cfg.Store.S3 = map[string]any{"region": "eu-west-1"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for s3 without bucket")
	}
	if !strings.Contains(err.Error(), "bucket") {
		t.Errorf("Expected 'bucket' error, got: %v", err)
	}

	cfg.Store.S3 = map[string]any{"bucket": "objfs-data"}
	err = Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for s3 without region")
	}
	if !strings.Contains(err.Error(), "region") {
		t.Errorf("Expected 'region' error, got: %v", err)
	}
}

func TestValidate_NoLockConflictsWithMetrics(t *testing.T) {
	cfg := defaultConfig()
	cfg.Mount.NoLock = true
	cfg.Metrics.Enabled = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for no_lock with metrics enabled")
	}
	if !strings.Contains(err.Error(), "no_lock") {
		t.Errorf("Expected 'no_lock' error, got: %v", err)
	}
}

func TestValidate_IdentityOutOfRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Mount.UID = -2

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for uid below -1")
	}
}
