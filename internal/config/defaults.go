package config

const (
	defaultConfigPath         = "~/.config/vodwatch/config.toml"
	defaultOutputDir          = "~/recordings"
	defaultLogDir             = "~/.local/share/vodwatch/logs"
	defaultStateDir           = "~/.local/share/vodwatch"
	defaultCheckInterval      = 2
	defaultMaxConcurrent      = 5
	defaultStreamCheckTimeout = 10
	defaultStreamCheckRetries = 2
	defaultBackoffBase        = 5
	defaultPostStreamCooldown = 30
	defaultStopGrace          = 5
	defaultProbeParallelism   = 4
	defaultStreamlinkBinary   = "streamlink"
	defaultURLTemplate        = "https://twitch.tv/{channel}"
	defaultQuality            = "best"
	defaultCaptureExtension   = "ts"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultCRF                = 24
	defaultPreset             = "faster"
	defaultToleranceSeconds   = 0.5
	defaultTargetExtension    = "mp4"
	defaultDeleteMode         = DeletePrompt
	defaultProbeTimeout       = 60
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Delete modes for original files after a verified compression.
const (
	DeleteYes    = "yes"
	DeletePrompt = "prompt"
	DeleteNo     = "no"
)

// Presets lists the accepted libx265 presets from fastest to slowest.
var Presets = []string{
	"ultrafast",
	"superfast",
	"veryfast",
	"faster",
	"fast",
	"medium",
	"slow",
	"slower",
	"veryslow",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Monitor: Monitor{
			CheckIntervalMinutes:      defaultCheckInterval,
			MaxConcurrent:             defaultMaxConcurrent,
			StreamCheckTimeout:        defaultStreamCheckTimeout,
			StreamCheckRetries:        defaultStreamCheckRetries,
			BackoffBaseSeconds:        defaultBackoffBase,
			PostStreamCooldownSeconds: defaultPostStreamCooldown,
			StopGraceSeconds:          defaultStopGrace,
			ProbeParallelism:          defaultProbeParallelism,
		},
		Capture: Capture{
			StreamlinkBinary: defaultStreamlinkBinary,
			URLTemplate:      defaultURLTemplate,
			Quality:          defaultQuality,
			Extension:        defaultCaptureExtension,
		},
		Compression: Compression{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			DefaultCRF:       defaultCRF,
			DefaultPreset:    defaultPreset,
			ToleranceSeconds: defaultToleranceSeconds,
			SourceExtension:  defaultCaptureExtension,
			TargetExtension:  defaultTargetExtension,
			DeleteMode:       defaultDeleteMode,
			ProbeTimeout:     defaultProbeTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
