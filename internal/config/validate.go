package config

import (
	"errors"
	"fmt"

	"murmur/internal/language"
)

// Validate ensures the configuration is usable. Model files are checked when
// the engine is built, not here, so commands that never transcribe still run
// without a model.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	if c.Trim.AdaptiveFactor <= 0 {
		return errors.New("trim.adaptive_factor must be positive")
	}
	if err := ensurePositiveMap(map[string]int{
		"server.max_upload_mb":       c.Server.MaxUploadMB,
		"server.max_concurrent_jobs": c.Server.MaxConcurrentJobs,
		"server.event_buffer":        c.Server.EventBuffer,
	}); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if t.Threads <= 0 {
		return errors.New("transcription.threads must be positive")
	}
	if t.Temperature < 0 || t.Temperature > 1 {
		return errors.New("transcription.temperature must be between 0 and 1")
	}
	if t.ConfidenceFallback < 0 || t.ConfidenceFallback > 1 {
		return errors.New("transcription.confidence_fallback must be between 0 and 1")
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return errors.New("transcription.min_confidence must be between 0 and 1")
	}
	if t.ChunkLengthMS < 0 {
		return errors.New("transcription.chunk_length_ms must not be negative")
	}
	if t.ChunkOverlapMS < 0 {
		return errors.New("transcription.chunk_overlap_ms must not be negative")
	}
	if t.Language != defaultLanguage && !language.Valid(t.Language) {
		return fmt.Errorf("transcription.language %q is not a recognised language code", t.Language)
	}
	return nil
}

func (c *Config) validateWhisperX() error {
	if c.WhisperX.BatchSize <= 0 {
		return errors.New("whisperx.batch_size must be positive")
	}
	switch c.WhisperX.VADMethod {
	case "silero":
	case "pyannote":
		if c.WhisperX.HFToken == "" {
			return errors.New("whisperx.hf_token must be set when whisperx.vad_method is pyannote")
		}
	default:
		return fmt.Errorf("whisperx.vad_method %q must be silero or pyannote", c.WhisperX.VADMethod)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
