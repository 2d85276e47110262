package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Clients < 1 {
		errs = append(errs, ValidationError{
			Field:   "clients",
			Message: "must be at least 1",
		})
	}

	if cfg.Repetitions < 1 {
		errs = append(errs, ValidationError{
			Field:   "repetitions",
			Message: "must be at least 1",
		})
	}

	if cfg.ServerCmd == "" {
		errs = append(errs, ValidationError{
			Field:   "server-cmd",
			Message: "server command is required",
		})
	}

	if cfg.ClientCmd == "" {
		errs = append(errs, ValidationError{
			Field:   "client-cmd",
			Message: "client command is required",
		})
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "port",
			Message: fmt.Sprintf("must be in [1,65535] (got %d)", cfg.Port),
		})
	}

	if cfg.Interface == "" {
		errs = append(errs, ValidationError{
			Field:   "interface",
			Message: "must not be empty",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log-format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Negative grace periods would turn escalation into immediate SIGKILL
	// and readiness probing into a single failed attempt.
	if cfg.Stagger < 0 {
		errs = append(errs, ValidationError{Field: "stagger", Message: "must be >= 0"})
	}
	if cfg.StartupTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "startup-timeout", Message: "must be positive"})
	}
	if cfg.CaptureGrace <= 0 {
		errs = append(errs, ValidationError{Field: "capture-grace", Message: "must be positive"})
	}
	if cfg.StopGrace <= 0 {
		errs = append(errs, ValidationError{Field: "stop-grace", Message: "must be positive"})
	}
	if cfg.SettleDelay < 0 {
		errs = append(errs, ValidationError{Field: "settle", Message: "must be >= 0"})
	}
	if cfg.Cooldown < 0 {
		errs = append(errs, ValidationError{Field: "cooldown", Message: "must be >= 0"})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
