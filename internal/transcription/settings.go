package transcription

import (
	"murmur/internal/config"
	"murmur/internal/language"
)

// FromSettings builds an engine config from the application configuration.
func FromSettings(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig("")
	}
	t := cfg.Transcription
	lang := t.Language
	if lang == language.Auto {
		lang = ""
	}
	out := DefaultConfig(t.ModelPath).
		WithVADModelPath(t.VADModelPath).
		WithLanguage(lang).
		WithTranslate(t.Translate).
		WithThreads(t.Threads).
		WithTemperature(float32(t.Temperature)).
		WithInitialPrompt(t.InitialPrompt).
		WithConfidenceFallback(float32(t.ConfidenceFallback)).
		WithDebugMode(t.Debug)
	if t.ChunkLengthMS > 0 {
		overlap := t.ChunkOverlapMS
		if overlap < 0 {
			overlap = 0
		}
		out = out.WithChunking(uint64(t.ChunkLengthMS), uint64(overlap))
	}
	return out
}
