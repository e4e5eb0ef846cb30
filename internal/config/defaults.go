package config

const (
	defaultWorkDir   = "~/.local/share/reelgen/work"
	defaultCacheDir  = "~/.local/share/reelgen/cache"
	defaultOutputDir = "~/reels"
	defaultLogDir    = "~/.local/share/reelgen/logs"

	defaultLLMBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel          = "gpt-4o-mini"
	defaultLLMTimeoutSeconds = 60

	defaultVoiceProvider       = "elevenlabs"
	defaultVoiceBaseURL        = "https://api.elevenlabs.io/v1"
	defaultVoiceTimeoutSeconds = 120

	defaultFootageBaseURL        = "https://api.pexels.com/videos"
	defaultFootageMaxCandidates  = 10
	defaultFootageMaxClipSeconds = 5.0
	defaultFootageTimeoutSeconds = 120

	defaultFontSize          = 70
	defaultFontName          = "Arial"
	defaultTextColor         = "#ffffff"
	defaultStrokeColor       = "#000000"
	defaultStrokeWidth       = 4
	defaultSubtitlesPosition = "center,center"
	defaultWatermarkType     = "text"
	defaultAspectRatio       = "9:16"
	defaultFrameRate         = 30
	defaultMusicVolume       = 0.15

	defaultScriptDurationSeconds = 30
	defaultMaxProviderRetries    = 3
	defaultRetryBaseMillis       = 1000
	defaultProviderConcurrency   = 2
	defaultMinCaptionSeconds     = 0.5
	defaultMaxCaptionSeconds     = 6.0
	defaultCaptionGapTolerance   = 0.05
	defaultQueuePollInterval     = 2
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120

	defaultCacheMaxGiB     = 10
	defaultCacheMaxAgeDays = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			CacheDir:  defaultCacheDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Voice: Voice{
			Provider:       defaultVoiceProvider,
			BaseURL:        defaultVoiceBaseURL,
			TimeoutSeconds: defaultVoiceTimeoutSeconds,
		},
		Footage: Footage{
			BaseURL:        defaultFootageBaseURL,
			MaxCandidates:  defaultFootageMaxCandidates,
			MaxClipSeconds: defaultFootageMaxClipSeconds,
			TimeoutSeconds: defaultFootageTimeoutSeconds,
		},
		Render: Render{
			FontSize:          defaultFontSize,
			FontName:          defaultFontName,
			TextColor:         defaultTextColor,
			StrokeColor:       defaultStrokeColor,
			StrokeWidth:       defaultStrokeWidth,
			SubtitlesPosition: defaultSubtitlesPosition,
			WatermarkType:     defaultWatermarkType,
			AspectRatio:       defaultAspectRatio,
			FrameRate:         defaultFrameRate,
			MusicVolume:       defaultMusicVolume,
		},
		Pipeline: Pipeline{
			ScriptDurationSeconds: defaultScriptDurationSeconds,
			MaxProviderRetries:    defaultMaxProviderRetries,
			RetryBaseMillis:       defaultRetryBaseMillis,
			ProviderConcurrency:   defaultProviderConcurrency,
			MinCaptionSeconds:     defaultMinCaptionSeconds,
			MaxCaptionSeconds:     defaultMaxCaptionSeconds,
			CaptionGapTolerance:   defaultCaptionGapTolerance,
			QueuePollInterval:     defaultQueuePollInterval,
			HeartbeatInterval:     defaultHeartbeatInterval,
			HeartbeatTimeout:      defaultHeartbeatTimeout,
		},
		Cache: Cache{
			Enabled:    true,
			MaxGiB:     defaultCacheMaxGiB,
			MaxAgeDays: defaultCacheMaxAgeDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
