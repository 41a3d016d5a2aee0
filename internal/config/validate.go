package config

import (
	"errors"
	"fmt"

	"cymatics/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWhisper(); err != nil {
		return err
	}
	if err := c.validateCycle(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWhisper() error {
	if c.Whisper.Model == "" {
		return errors.New("whisper.model must be set")
	}
	if _, ok := language.Normalize(c.Whisper.Language); !ok {
		return fmt.Errorf("whisper.language: unrecognized value %q (use an ISO 639-1 code or leave empty to auto-detect)", c.Whisper.Language)
	}
	if c.Whisper.UnloadTimeout <= 0 {
		return errors.New("whisper.unload_timeout must be positive")
	}
	return nil
}

func (c *Config) validateCycle() error {
	if c.Cycle.PollInterval <= 0 {
		return errors.New("cycle.poll_interval must be positive")
	}
	if c.Cycle.DebounceSeconds < 0 {
		return errors.New("cycle.debounce_seconds must be zero or positive")
	}
	if c.Cycle.MaxMoveAttempts < 0 {
		return errors.New("cycle.max_move_attempts must be zero (unlimited) or positive")
	}
	if c.Cycle.ShutdownTimeout <= 0 {
		return errors.New("cycle.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero (keep forever) or positive")
	}
	return nil
}
