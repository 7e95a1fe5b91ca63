package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	WorkDir string `toml:"work_dir"`
}

// Transcription contains the inference engine settings.
type Transcription struct {
	ModelPath     string  `toml:"model_path"`
	VADModelPath  string  `toml:"vad_model_path"`
	Language      string  `toml:"language"`
	Translate     bool    `toml:"translate"`
	Threads       int     `toml:"threads"`
	Temperature   float64 `toml:"temperature"`
	InitialPrompt string  `toml:"initial_prompt"`
	// ChunkLengthMS enables chunked transcription when positive.
	ChunkLengthMS      int     `toml:"chunk_length_ms"`
	ChunkOverlapMS     int     `toml:"chunk_overlap_ms"`
	ConfidenceFallback float64 `toml:"confidence_fallback"`
	// MinConfidence drops segments below this score before results are stored.
	MinConfidence float64 `toml:"min_confidence"`
	// FilterHallucinations drops credit lines, music cues and repeated
	// phrases from the subtitle track of stored results.
	FilterHallucinations bool `toml:"filter_hallucinations"`
	Debug                bool `toml:"debug"`
}

// WhisperX contains settings for the uvx-launched whisperx backend.
type WhisperX struct {
	CUDAEnabled bool   `toml:"cuda_enabled"`
	BatchSize   int    `toml:"batch_size"`
	ComputeType string `toml:"compute_type"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Align       bool   `toml:"align"`
}

// Trim contains silence trimmer settings.
type Trim struct {
	AdaptiveFactor float64 `toml:"adaptive_factor"`
}

// Server contains settings for the local HTTP API.
type Server struct {
	Bind              string `toml:"bind"`
	MaxUploadMB       int    `toml:"max_upload_mb"`
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs"`
	EventBuffer       int    `toml:"event_buffer"`
	// Token enables bearer authentication on /v1 routes when set.
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// RetentionDays prunes per-job log files older than this many days. Zero keeps everything.
	RetentionDays int `toml:"retention_days"`
}

// Config encapsulates all configuration values for murmur.
//
// Configuration sections by subsystem:
//   - Paths: database, log and scratch directories
//   - Transcription: model, decoding and chunking settings
//   - WhisperX: inference backend launch options
//   - Trim: silence trimmer tuning
//   - Server: HTTP API bind address and job limits
//   - Logging: log format, level and job log retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	WhisperX      WhisperX      `toml:"whisperx"`
	Trim          Trim          `toml:"trim"`
	Server        Server        `toml:"server"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("murmur.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log and work directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the transcript store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "murmur.db")
}

// LogPath returns the server log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "murmur.log")
}

// JobLogDir returns the directory holding one log file per transcription job.
func (c *Config) JobLogDir() string {
	return filepath.Join(c.Paths.LogDir, "jobs")
}

// LockPath returns the single-writer lock file guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "murmur.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for media conversion.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used to inspect media.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// UVXBinary returns the uv tool runner used to launch whisperx.
func (c *Config) UVXBinary() string {
	return "uvx"
}

// ChunkingEnabled reports whether long inputs are transcribed chunk by chunk.
func (c *Config) ChunkingEnabled() bool {
	return c.Transcription.ChunkLengthMS > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
