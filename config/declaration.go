package config

import (
	"fmt"

	"github.com/c360/flowkit/errors"
)

// Declaration documents a configuration key a process understands
type Declaration struct {
	// Key is the dotted configuration key, relative to the process
	Key string
	// Default is the value applied when the key is absent; ignored for
	// required keys
	Default string
	// Description is the human-readable documentation for the key
	Description string
	// Required marks keys that must be present with a non-empty value
	Required bool
}

// ApplyDefaults sets the default value for every declared, non-required key
// that is absent from cfg.
func ApplyDefaults(decls []Declaration, cfg *Config) {
	for _, d := range decls {
		if d.Required {
			continue
		}
		if !cfg.Has(d.Key) {
			cfg.Set(d.Key, d.Default)
		}
	}
}

// Validate checks cfg against the declarations, accumulating one error per
// problem. It never stops at the first failure, so a configuration dry-run
// reports every issue at once.
func Validate(decls []Declaration, cfg *Config) []error {
	var errs []error
	for _, d := range decls {
		if !d.Required {
			continue
		}
		v, ok := cfg.Get(d.Key)
		if !ok {
			errs = append(errs, errors.WrapInvalid(
				fmt.Errorf("%w: %q (%s)", errors.ErrMissingConfig, d.Key, d.Description),
				"Config", "Validate", "required key check"))
			continue
		}
		if v == "" {
			errs = append(errs, errors.WrapInvalid(
				fmt.Errorf("%w: key %q is empty (%s)", errors.ErrBadConfiguration, d.Key, d.Description),
				"Config", "Validate", "required value check"))
		}
	}
	return errs
}
