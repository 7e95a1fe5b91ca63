package transcription_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

func TestValidateRejectsBadConfig(t *testing.T) {
	model := writeModel(t)
	tests := []struct {
		name string
		cfg  transcription.Config
	}{
		{"missing model path", transcription.DefaultConfig("")},
		{"model does not exist", transcription.DefaultConfig(filepath.Join(t.TempDir(), "nope.bin"))},
		{"model directory is empty", transcription.DefaultConfig(t.TempDir())},
		{"vad model is a directory", transcription.DefaultConfig(model).WithVADModelPath(t.TempDir())},
		{"vad model does not exist", transcription.DefaultConfig(model).WithVADModelPath(filepath.Join(t.TempDir(), "vad.bin"))},
		{"zero threads", transcription.DefaultConfig(model).WithThreads(0)},
		{"negative threads", transcription.DefaultConfig(model).WithThreads(-2)},
		{"temperature above one", func() transcription.Config { c := transcription.DefaultConfig(model); c.Temperature = 1.5; return c }()},
		{"negative fallback", func() transcription.Config {
			c := transcription.DefaultConfig(model)
			c.ConfidenceFallback = -0.1
			return c
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, transcription.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := transcription.DefaultConfig(writeModel(t)).Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateAcceptsModelDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "faster-whisper-base")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"model.bin", "config.json", "tokenizer.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := transcription.DefaultConfig(dir).Validate(); err != nil {
		t.Fatalf("expected model directory to validate, got %v", err)
	}
}

func TestBuildersClamp(t *testing.T) {
	cfg := transcription.DefaultConfig("m").WithTemperature(3).WithConfidenceFallback(-1)
	if cfg.Temperature != 1 {
		t.Fatalf("expected temperature clamped to 1, got %v", cfg.Temperature)
	}
	if cfg.ConfidenceFallback != 0 {
		t.Fatalf("expected fallback clamped to 0, got %v", cfg.ConfidenceFallback)
	}
	if cfg.WithTemperature(-0.5).Temperature != 0 {
		t.Fatal("expected negative temperature clamped to 0")
	}
}

func TestUseChunking(t *testing.T) {
	cfg := transcription.DefaultConfig("m")
	if cfg.UseChunking() {
		t.Fatal("default config should be single-pass")
	}
	chunked := cfg.WithChunking(30000, 500)
	if !chunked.UseChunking() {
		t.Fatal("positive chunk length should enable chunking")
	}
	opts := chunked.ChunkOptions()
	if opts.ChunkLengthMS != 30000 || opts.OverlapMS != 500 {
		t.Fatalf("unexpected chunk options: %+v", opts)
	}
}

func TestParamsCarryDecodingSettings(t *testing.T) {
	cfg := transcription.DefaultConfig("m").
		WithLanguage(" de ").
		WithTranslate(true).
		WithThreads(8).
		WithTemperature(0.2).
		WithInitialPrompt("Glossary: murmur").
		WithDebugMode(true)
	p := cfg.Params()
	if p.Language != "de" || !p.Translate || p.Threads != 8 || p.Temperature != 0.2 || p.InitialPrompt != "Glossary: murmur" || !p.Debug {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestFromSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModelFile(), testsupport.WithChunking(45000, 750))
	cfg.Transcription.Temperature = 0.3
	cfg.Transcription.Translate = true

	got := transcription.FromSettings(cfg)
	if got.ModelPath != cfg.Transcription.ModelPath {
		t.Fatalf("model path = %q", got.ModelPath)
	}
	if got.Language != "" {
		t.Fatalf("auto language should map to empty, got %q", got.Language)
	}
	if got.ChunkLengthMS != 45000 || got.ChunkOverlapMS != 750 {
		t.Fatalf("unexpected chunking: %d/%d", got.ChunkLengthMS, got.ChunkOverlapMS)
	}
	if !got.Translate || got.Temperature < 0.29 || got.Temperature > 0.31 {
		t.Fatalf("unexpected decoding settings: %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("expected settings to validate: %v", err)
	}

	disabled := transcription.FromSettings(testsupport.NewConfig(t, testsupport.WithChunking(0, 0), testsupport.WithLanguage("en")))
	if disabled.UseChunking() {
		t.Fatal("zero chunk length should disable chunking")
	}
	if disabled.Language != "en" {
		t.Fatalf("expected explicit language, got %q", disabled.Language)
	}
}
