package config

const (
	defaultConfigPath         = "~/.config/murmur/config.toml"
	defaultDataDir            = "~/.local/share/murmur"
	defaultLogDir             = "~/.local/share/murmur/logs"
	defaultWorkDir            = "~/.cache/murmur/work"
	defaultLanguage           = "auto"
	defaultThreads            = 4
	defaultChunkLengthMS      = 60000
	defaultChunkOverlapMS     = 1000
	defaultConfidenceFallback = 0.5
	defaultWhisperXBatchSize  = 4
	defaultWhisperXCompute    = "float32"
	defaultWhisperXVADMethod  = "silero"
	defaultTrimFactor         = 0.5
	defaultServerBind         = "127.0.0.1:7488"
	defaultMaxUploadMB        = 512
	defaultMaxConcurrentJobs  = 1
	defaultEventBuffer        = 64
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			WorkDir: defaultWorkDir,
		},
		Transcription: Transcription{
			Language:             defaultLanguage,
			Threads:              defaultThreads,
			ChunkLengthMS:        defaultChunkLengthMS,
			ChunkOverlapMS:       defaultChunkOverlapMS,
			ConfidenceFallback:   defaultConfidenceFallback,
			FilterHallucinations: true,
		},
		WhisperX: WhisperX{
			BatchSize:   defaultWhisperXBatchSize,
			ComputeType: defaultWhisperXCompute,
			VADMethod:   defaultWhisperXVADMethod,
			Align:       true,
		},
		Trim: Trim{
			AdaptiveFactor: defaultTrimFactor,
		},
		Server: Server{
			Bind:              defaultServerBind,
			MaxUploadMB:       defaultMaxUploadMB,
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			EventBuffer:       defaultEventBuffer,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
