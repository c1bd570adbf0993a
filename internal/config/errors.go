package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports that config.yaml could not be turned into a
// Configuration. Op is "read" when viper fails to parse the file and
// "unmarshal" when its keys do not decode into the typed sections.
type ConfigError struct {
	Op   string
	File string // empty when no file was found and only env/defaults applied
	Err  error
}

func (e *ConfigError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("config %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("config %s %s: %v", e.Op, e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError collects every problem Validate found, each prefixed with
// the dotted key it concerns (for example "providers.max_retries"), so an
// operator can fix the whole file in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Mentions reports whether any problem concerns key.
func (e *ValidationError) Mentions(key string) bool {
	for _, p := range e.Problems {
		if strings.Contains(p, key) {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfigError reports whether err came from reading or decoding the file.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
