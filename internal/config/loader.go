// loader.go implements the configuration loading lifecycle for GymDesk.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent quota-day drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType classifies configuration failures for diagnostics.
type ConfigErrorType string

const (
	ErrTypeProcess  ConfigErrorType = "process"
	ErrTypeValidate ConfigErrorType = "validate"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid
// debugging. It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig executes the full loading sequence and returns the populated,
// validated configuration. A nil error guarantees the Config passed
// struct-level validation; callers should treat any error as fatal.
func LoadConfig() (*Config, error) {
	// The quota ledger is keyed by UTC day; a process-local timezone must
	// never leak into day arithmetic.
	time.Local = time.UTC

	// Dotenv is a convenience for local development. A missing file is the
	// normal case in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrTypeProcess,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig runs struct-tag validation over the populated Config.
func validateConfig(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrTypeValidate,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return nil
}
