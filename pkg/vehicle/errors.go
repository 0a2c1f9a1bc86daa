package vehicle

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned by New and Config.Validate when the vehicle cannot be built.
	ErrConfiguration = errors.New("invalid vehicle configuration")
	// ErrInvalidInput is returned when a replicated control state is rejected.
	ErrInvalidInput = errors.New("invalid control input")
	// ErrOutOfRange is returned by indexed queries (gears, wheels) given a bad index.
	ErrOutOfRange = errors.New("index out of range")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
