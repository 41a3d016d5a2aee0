package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cymatics/internal/language"
)

// applyEnv overlays the environment variables understood by the service.
func (c *Config) applyEnv() error {
	if value, ok := lookupEnv("DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	if value, ok := lookupEnv("WHISPER_MODEL"); ok {
		c.Whisper.Model = value
	}
	if value, ok := lookupEnv("MODEL_UNLOAD_TIMEOUT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("MODEL_UNLOAD_TIMEOUT: %w", err)
		}
		c.Whisper.UnloadTimeout = parsed
	}
	if value, ok := lookupEnv("DEBOUNCE_SECONDS"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("DEBOUNCE_SECONDS: %w", err)
		}
		c.Cycle.DebounceSeconds = parsed
	}
	if value, ok := lookupEnv("CYCLE_POLL_INTERVAL"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("CYCLE_POLL_INTERVAL: %w", err)
		}
		c.Cycle.PollInterval = parsed
	}
	if value, ok := lookupEnv("CYMATICS_USE_MOCK_TRANSMUTATION"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CYMATICS_USE_MOCK_TRANSMUTATION: %w", err)
		}
		c.Whisper.UseMock = parsed
	}
	if value, ok := lookupEnv("CYMATICS_APP_NAME"); ok {
		c.API.AppName = value
	}
	if value, ok := lookupEnv("CYMATICS_API_BIND"); ok {
		c.API.Bind = value
	}
	if c.Notifications.NtfyTopic == "" {
		if value, ok := lookupEnv("CYMATICS_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWhisper()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Whisper.ModelsDir) == "" {
		c.Whisper.ModelsDir = defaultModelsDir
	}
	if c.Whisper.ModelsDir, err = expandPath(c.Whisper.ModelsDir); err != nil {
		return fmt.Errorf("whisper.models_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWhisper() {
	c.Whisper.Model = strings.TrimSpace(c.Whisper.Model)
	if code, ok := language.Normalize(c.Whisper.Language); ok {
		c.Whisper.Language = code
	} else {
		c.Whisper.Language = strings.TrimSpace(c.Whisper.Language)
	}
	c.Whisper.FFmpegBinary = strings.TrimSpace(c.Whisper.FFmpegBinary)
	if c.Whisper.NumThreads <= 0 {
		c.Whisper.NumThreads = defaultWhisperNumThreads
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.AppName = strings.TrimSpace(c.API.AppName)
	if c.API.AppName == "" {
		c.API.AppName = defaultAppName
	}
	if c.API.MaxUploadMiB <= 0 {
		c.API.MaxUploadMiB = defaultMaxUploadMiB
	}
	if c.API.ClientTimeout <= 0 {
		c.API.ClientTimeout = defaultClientTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
