package config

const (
	defaultDataDir              = "~/.local/share/cymatics/data"
	defaultStateDir             = "~/.local/share/cymatics"
	defaultLogDir               = "~/.local/share/cymatics/logs"
	defaultModelsDir            = "~/.local/share/cymatics/models"
	defaultWhisperModel         = "medium"
	defaultWhisperNumThreads    = 4
	defaultUnloadTimeout        = 300
	defaultPollInterval         = 5.0
	defaultDebounceSeconds      = 2.0
	defaultShutdownTimeout      = 30
	defaultAPIBind              = "127.0.0.1:7489"
	defaultAppName              = "cymatics"
	defaultMaxUploadMiB         = 2048
	defaultClientTimeout        = 30
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Whisper: Whisper{
			Model:         defaultWhisperModel,
			ModelsDir:     defaultModelsDir,
			NumThreads:    defaultWhisperNumThreads,
			UnloadTimeout: defaultUnloadTimeout,
		},
		Cycle: Cycle{
			PollInterval:    defaultPollInterval,
			DebounceSeconds: defaultDebounceSeconds,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		API: API{
			Bind:          defaultAPIBind,
			AppName:       defaultAppName,
			MaxUploadMiB:  defaultMaxUploadMiB,
			ClientTimeout: defaultClientTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
