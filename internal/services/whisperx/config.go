package whisperx

import (
	"strings"

	"murmur/internal/config"
)

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Binary is the uv tool runner used to launch whisperx.
	Binary string
	// WorkDir holds per-session scratch directories. Empty uses the OS temp dir.
	WorkDir string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	BatchSize   int
	ComputeType string
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD.
	HFToken string
	// Align enables the word alignment pass that produces per-word scores.
	Align bool
}

// WhisperX configuration constants.
const (
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	DefaultBatchSize  = 4
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
	UVXCommand        = "uvx"
)

// ConfigFromSettings maps the [whisperx] and [paths] sections onto a backend Config.
func ConfigFromSettings(cfg *config.Config) Config {
	if cfg == nil {
		return Config{Binary: UVXCommand, BatchSize: DefaultBatchSize, VADMethod: VADMethodSilero, Align: true}
	}
	return Config{
		Binary:      cfg.UVXBinary(),
		WorkDir:     cfg.Paths.WorkDir,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		BatchSize:   cfg.WhisperX.BatchSize,
		ComputeType: strings.TrimSpace(cfg.WhisperX.ComputeType),
		VADMethod:   strings.TrimSpace(cfg.WhisperX.VADMethod),
		HFToken:     cfg.WhisperX.HFToken,
		Align:       cfg.WhisperX.Align,
	}
}

func (c Config) binary() string {
	if strings.TrimSpace(c.Binary) == "" {
		return UVXCommand
	}
	return c.Binary
}
