package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"murmur/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MURMUR_MODEL_PATH", "~/models/base")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "murmur")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "murmur.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Transcription.ModelPath != filepath.Join(tempHome, "models", "base") {
		t.Fatalf("expected model path from env, got %q", cfg.Transcription.ModelPath)
	}
	if cfg.Transcription.Language != "auto" {
		t.Fatalf("unexpected language default: %q", cfg.Transcription.Language)
	}
	if !cfg.ChunkingEnabled() {
		t.Fatal("expected chunking enabled by default")
	}
	if cfg.Server.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.WorkDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "murmur.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Transcription struct {
			Language      string `toml:"language"`
			ChunkLengthMS int    `toml:"chunk_length_ms"`
		} `toml:"transcription"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Transcription.Language = "French"
	custom.Transcription.ChunkLengthMS = 0
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != custom.Paths.DataDir {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Transcription.Language != "fr" {
		t.Fatalf("expected language normalized to fr, got %q", cfg.Transcription.Language)
	}
	if cfg.ChunkingEnabled() {
		t.Fatal("expected chunking disabled")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Transcription.Threads != config.Default().Transcription.Threads {
		t.Fatalf("expected default threads, got %d", cfg.Transcription.Threads)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "murmur.toml")
	if err := os.WriteFile(configPath, []byte("[transcription]\nmodle_path = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threads", func(c *config.Config) { c.Transcription.Threads = 0 }, "transcription.threads"},
		{"temperature", func(c *config.Config) { c.Transcription.Temperature = 1.5 }, "transcription.temperature"},
		{"fallback", func(c *config.Config) { c.Transcription.ConfidenceFallback = -0.1 }, "transcription.confidence_fallback"},
		{"overlap", func(c *config.Config) { c.Transcription.ChunkOverlapMS = -1 }, "transcription.chunk_overlap_ms"},
		{"language", func(c *config.Config) { c.Transcription.Language = "not a language" }, "transcription.language"},
		{"vad method", func(c *config.Config) { c.WhisperX.VADMethod = "webrtc" }, "whisperx.vad_method"},
		{"pyannote token", func(c *config.Config) { c.WhisperX.VADMethod = "pyannote" }, "whisperx.hf_token"},
		{"trim factor", func(c *config.Config) { c.Trim.AdaptiveFactor = 0 }, "trim.adaptive_factor"},
		{"upload", func(c *config.Config) { c.Server.MaxUploadMB = 0 }, "server.max_upload_mb"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Trim.AdaptiveFactor != 0.5 {
		t.Fatalf("unexpected trim factor: %v", cfg.Trim.AdaptiveFactor)
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := config.Default()
	data, err := config.Encode(&cfg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "[transcription]") {
		t.Fatalf("encoded config missing section:\n%s", data)
	}
}
