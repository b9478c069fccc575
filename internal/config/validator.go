package config

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/opencode-ai/cadence/internal/timeline"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks cfg for invalid values.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		add("log.level", cfg.Log.Level, "must be debug, info, warn or error")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "auto", "console", "text", "json":
	default:
		add("log.format", cfg.Log.Format, "must be console or json")
	}

	if cfg.History.Enabled && strings.TrimSpace(cfg.Database.Path) == "" {
		add("database.path", cfg.Database.Path, "required when history is enabled")
	}

	if strings.TrimSpace(cfg.Trigger.Button) == "" {
		add("trigger.button", cfg.Trigger.Button, "must not be empty")
	}
	if len(cfg.Trigger.Key) != 1 {
		add("trigger.key", cfg.Trigger.Key, "must be a single character")
	}
	if len(cfg.Trigger.QuitKey) != 1 {
		add("trigger.quit_key", cfg.Trigger.QuitKey, "must be a single character")
	} else if cfg.Trigger.QuitKey == cfg.Trigger.Key {
		add("trigger.quit_key", cfg.Trigger.QuitKey, "must differ from trigger.key")
	}
	if cfg.Trigger.PollInterval <= 0 {
		add("trigger.poll_interval", cfg.Trigger.PollInterval, "must be positive")
	}

	if cfg.Sequences.Policy != "" {
		if _, err := timeline.ParsePolicy(cfg.Sequences.Policy); err != nil {
			add("sequences.policy", cfg.Sequences.Policy, "must be concurrent, ignore or restart")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
