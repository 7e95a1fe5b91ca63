package transcription

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"murmur/internal/chunker"
)

// ErrInvalidConfig marks configuration problems detected before processing.
var ErrInvalidConfig = errors.New("invalid transcription config")

// Engine defaults.
const (
	DefaultThreads                    = 4
	DefaultConfidenceFallback float32 = 0.5
)

// Config describes one transcription engine. An empty Language requests
// auto-detection.
type Config struct {
	ModelPath     string
	VADModelPath  string
	Language      string
	Translate     bool
	Threads       int
	Temperature   float32
	InitialPrompt string
	// ChunkLengthMS enables chunked decoding when positive.
	ChunkLengthMS  uint64
	ChunkOverlapMS uint64
	// ConfidenceFallback scores segments whose tokens are all unreadable.
	ConfidenceFallback float32
	DebugMode          bool
}

// DefaultConfig returns a single-pass, auto-language config for modelPath.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:          modelPath,
		Threads:            DefaultThreads,
		ConfidenceFallback: DefaultConfidenceFallback,
	}
}

func (c Config) WithVADModelPath(path string) Config {
	c.VADModelPath = path
	return c
}

func (c Config) WithLanguage(lang string) Config {
	c.Language = strings.TrimSpace(lang)
	return c
}

func (c Config) WithTranslate(translate bool) Config {
	c.Translate = translate
	return c
}

func (c Config) WithThreads(n int) Config {
	c.Threads = n
	return c
}

// WithTemperature clamps t to [0, 1].
func (c Config) WithTemperature(t float32) Config {
	c.Temperature = clampUnit(t)
	return c
}

func (c Config) WithInitialPrompt(prompt string) Config {
	c.InitialPrompt = prompt
	return c
}

func (c Config) WithChunking(lengthMS, overlapMS uint64) Config {
	c.ChunkLengthMS = lengthMS
	c.ChunkOverlapMS = overlapMS
	return c
}

// WithConfidenceFallback clamps v to [0, 1].
func (c Config) WithConfidenceFallback(v float32) Config {
	c.ConfidenceFallback = clampUnit(v)
	return c
}

func (c Config) WithDebugMode(debug bool) Config {
	c.DebugMode = debug
	return c
}

// UseChunking reports whether long inputs are decoded chunk by chunk.
func (c Config) UseChunking() bool {
	return c.ChunkLengthMS > 0
}

// ChunkOptions maps the chunk settings onto chunker options.
func (c Config) ChunkOptions() chunker.Options {
	opts := chunker.DefaultOptions()
	opts.ChunkLengthMS = c.ChunkLengthMS
	opts.OverlapMS = c.ChunkOverlapMS
	return opts
}

// Validate checks every field that can be checked without loading the model.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("%w: model path is required", ErrInvalidConfig)
	}
	if err := requireModel(c.ModelPath); err != nil {
		return fmt.Errorf("%w: model path: %w", ErrInvalidConfig, err)
	}
	if c.VADModelPath != "" {
		if err := requireFile(c.VADModelPath); err != nil {
			return fmt.Errorf("%w: vad model path: %w", ErrInvalidConfig, err)
		}
	}
	if c.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidConfig, c.Threads)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: temperature %.2f outside [0, 1]", ErrInvalidConfig, c.Temperature)
	}
	if c.ConfidenceFallback < 0 || c.ConfidenceFallback > 1 {
		return fmt.Errorf("%w: confidence fallback %.2f outside [0, 1]", ErrInvalidConfig, c.ConfidenceFallback)
	}
	return nil
}

// Params returns the per-run decoding parameters.
func (c Config) Params() Params {
	return Params{
		Language:      c.Language,
		Translate:     c.Translate,
		Threads:       c.Threads,
		Temperature:   c.Temperature,
		InitialPrompt: c.InitialPrompt,
		Debug:         c.DebugMode,
	}
}

// requireModel accepts a single weights file or a model directory such as a
// CTranslate2 export. An empty directory cannot hold a model.
func requireModel(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%s is an empty directory", path)
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func clampUnit(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
