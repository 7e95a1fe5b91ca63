package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"murmur/internal/audio"
	"murmur/internal/logging"
	mediaaudio "murmur/internal/media/audio"
	"murmur/internal/media/ffprobe"
	"murmur/internal/services"
)

const stage = "convert"

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober inspects a media file.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Option configures a Converter.
type Option func(*Converter)

// WithRunner overrides the ffmpeg command runner.
func WithRunner(runner Runner) Option {
	return func(c *Converter) {
		if runner != nil {
			c.run = runner
		}
	}
}

// WithProber overrides the ffprobe inspection.
func WithProber(prober Prober) Option {
	return func(c *Converter) {
		if prober != nil {
			c.probe = prober
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Converter wraps ffmpeg and ffprobe.
type Converter struct {
	ffmpeg  string
	ffprobe string
	run     Runner
	probe   Prober
	logger  *slog.Logger
}

// Result describes a completed conversion.
type Result struct {
	Source    string
	Path      string
	Selection mediaaudio.Selection
	Data      audio.Data
	// Converted is false when the source was already a compatible WAV.
	Converted bool
}

// NewConverter constructs a converter using the named binaries.
func NewConverter(ffmpegBinary, ffprobeBinary string, opts ...Option) *Converter {
	c := &Converter{
		ffmpeg:  strings.TrimSpace(ffmpegBinary),
		ffprobe: strings.TrimSpace(ffprobeBinary),
		run:     combinedOutput,
		probe:   ffprobe.Inspect,
		logger:  logging.NewNop(),
	}
	if c.ffmpeg == "" {
		c.ffmpeg = "ffmpeg"
	}
	if c.ffprobe == "" {
		c.ffprobe = "ffprobe"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertToWhisperWAV writes the speech stream of src to dst as mono 16 kHz
// 16-bit PCM and returns the decoded samples.
func (c *Converter) ConvertToWhisperWAV(ctx context.Context, src, dst, preferredLanguage string) (Result, error) {
	src = strings.TrimSpace(src)
	dst = strings.TrimSpace(dst)
	if src == "" || dst == "" {
		return Result{}, services.Wrap(services.ErrValidation, stage, "arguments", "source and destination are required", nil)
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrNotFound, stage, "stat source", src, err)
		}
		return Result{}, services.Wrap(services.ErrValidation, stage, "stat source", src, err)
	}

	probe, err := c.probe(ctx, c.ffprobe, src)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stage, "ffprobe", src, err)
	}
	selection := mediaaudio.Select(probe.Streams, preferredLanguage)
	if !selection.Found() {
		return Result{}, services.Wrap(services.ErrValidation, stage, "select stream", "source has no audio streams", nil)
	}
	c.logger.Info("audio stream selected",
		logging.String(logging.FieldEventType, "stream_selected"),
		logging.String("source", src),
		logging.Int("stream_index", selection.PrimaryIndex),
		logging.String("stream", selection.PrimaryLabel()),
		logging.Bool("language_match", selection.Matched),
		logging.Int("audio_streams", selection.Candidates),
	)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stage, "create output dir", filepath.Dir(dst), err)
	}
	args := BuildArgs(src, selection.PrimaryIndex, dst)
	if output, err := c.run(ctx, c.ffmpeg, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, services.Wrap(services.ErrExternalTool, stage, "ffmpeg", strings.TrimSpace(string(output)), err)
	}

	data, err := audio.ReadWAVFile(dst)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stage, "verify output", dst, err)
	}
	if !data.IsWhisperCompatible() {
		return Result{}, services.Wrap(services.ErrExternalTool, stage, "verify output",
			fmt.Sprintf("ffmpeg produced %d Hz %d channel audio", data.SampleRate, data.Channels), data.RequireWhisperCompatible())
	}
	c.logger.Debug("conversion complete",
		logging.String("source", src),
		logging.String("output", dst),
		logging.Uint64("duration_ms", data.DurationMS()),
	)
	return Result{Source: src, Path: dst, Selection: selection, Data: data, Converted: true}, nil
}

// Load returns engine-ready samples for src. Compatible WAV files are read
// directly; anything else is converted through a scratch file under workDir.
func (c *Converter) Load(ctx context.Context, src, workDir, preferredLanguage string) (Result, error) {
	if audio.IsWAVPath(src) {
		data, err := audio.ReadWAVFile(src)
		if err == nil && data.IsWhisperCompatible() {
			return Result{Source: src, Path: src, Selection: mediaaudio.Selection{PrimaryIndex: 0}, Data: data}, nil
		}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stage, "create work dir", workDir, err)
	}
	scratch, err := os.MkdirTemp(workDir, "convert-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stage, "create scratch dir", workDir, err)
	}
	defer os.RemoveAll(scratch)

	result, err := c.ConvertToWhisperWAV(ctx, src, filepath.Join(scratch, "audio.wav"), preferredLanguage)
	if err != nil {
		return Result{}, err
	}
	result.Path = ""
	return result, nil
}

// BuildArgs returns the ffmpeg arguments that extract stream index of src
// as mono 16 kHz PCM into dst.
func BuildArgs(src string, streamIndex int, dst string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", audio.WhisperSampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
