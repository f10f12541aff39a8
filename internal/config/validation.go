package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig checks every section and reports all problems at once.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateStore(&c.Store)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateNotify(&c.Notify)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if e.UserDataDir == "" {
		errs = append(errs, *RequiredFieldError("engine.user_data_dir"))
	}
	if e.SharedDataDir == "" {
		errs = append(errs, *RequiredFieldError("engine.shared_data_dir"))
	}
	if e.MaxCandidates < 1 || e.MaxCandidates > 1000 {
		errs = append(errs, *RangeError("engine.max_candidates", 1, 1000))
	}
	if e.PageSize < 1 || e.PageSize > e.MaxCandidates {
		errs = append(errs, ValidationError{
			Field:   "engine.page_size",
			Message: fmt.Sprintf("must be between 1 and max_candidates (%d)", e.MaxCandidates),
		})
	}
	if e.SimplifiedOption == "" {
		errs = append(errs, *RequiredFieldError("engine.simplified_option"))
	}
	if e.SharedDataDir != "" && e.SharedDataDir == e.UserDataDir {
		errs = append(errs, ValidationError{
			Field:   "engine.user_data_dir",
			Message: "must differ from shared_data_dir; deployment writes into it",
		})
	}

	return errs
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	var errs ValidationErrors
	if k.Path == "" {
		errs = append(errs, *RequiredFieldError("keyboard.path"))
	}
	return errs
}

func validateStore(s *StoreConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("store.path"))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output writes to a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

func validateNotify(n *NotifyConfig) ValidationErrors {
	var errs ValidationErrors
	// -1 lets the notification server pick the timeout.
	if n.TimeoutMs < -1 {
		errs = append(errs, *RangeError("notify.timeout_ms", -1, "any"))
	}
	return errs
}

// RequiredFieldError creates a validation error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
