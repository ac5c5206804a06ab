package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation via
// struct tags, with additional custom validation for rules that cannot be
// expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The no-lock promise is incompatible with a metrics endpoint polling
	// cache stats from another goroutine.
	if cfg.Mount.NoLock && cfg.Metrics.Enabled {
		return fmt.Errorf("mount: no_lock cannot be combined with metrics.enabled")
	}

	switch cfg.Store.Type {
	case "badger":
		if path, _ := cfg.Store.Badger["db_path"].(string); path == "" {
			if inMem, _ := cfg.Store.Badger["in_memory"].(bool); !inMem {
				return fmt.Errorf("store.badger: db_path is required unless in_memory is set")
			}
		}
	case "s3":
		if bucket, _ := cfg.Store.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("store.s3: bucket is required")
		}
		if region, _ := cfg.Store.S3["region"].(string); region == "" {
			return fmt.Errorf("store.s3: region is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
