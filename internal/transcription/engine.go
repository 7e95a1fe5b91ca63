package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"murmur/internal/audio"
	"murmur/internal/chunker"
	"murmur/internal/language"
	"murmur/internal/logging"
	"murmur/internal/vad/silero"
)

// ErrAborted reports a transcription stopped by the observer or context.
// It is never a processing failure.
var ErrAborted = errors.New("transcription aborted")

// Input format errors, re-exported for callers that only import this package.
var (
	ErrSampleRate = audio.ErrSampleRate
	ErrChannels   = audio.ErrChannels
)

// Gate preprocesses samples before inference, typically attenuating non-speech.
type Gate interface {
	Apply(samples []float32) ([]float32, error)
	Close() error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithGate installs a speech gate instead of loading one from VADModelPath.
func WithGate(g Gate) Option {
	return func(e *Engine) {
		e.gate = g
	}
}

// Engine runs transcriptions against one loaded model. It is safe for
// concurrent use; every call opens its own Session.
type Engine struct {
	cfg    Config
	model  Model
	gate   Gate
	logger *slog.Logger
	// borrowed engines share the model and gate of the engine they came from.
	borrowed bool
}

// New validates cfg, prepares the optional speech gate and loads the model.
func New(cfg Config, loader Loader, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: model loader is required", ErrInvalidConfig)
	}
	e := &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcription"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.gate == nil && cfg.VADModelPath != "" {
		gate, err := silero.NewGate(cfg.VADModelPath, silero.Options{})
		if err != nil {
			return nil, fmt.Errorf("%w: vad model: %w", ErrInvalidConfig, err)
		}
		e.gate = gate
	}

	e.logger.Debug("loading model", logging.String("model_path", cfg.ModelPath))
	model, err := loader(cfg)
	if err != nil {
		if e.gate != nil {
			_ = e.gate.Close()
		}
		return nil, fmt.Errorf("load model: %w", err)
	}
	e.model = model
	return e, nil
}

// Config returns the validated engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ForLanguage returns an engine sharing the loaded model that decodes in lang.
// Empty or "auto" requests detection. The returned engine does not own the
// model; close only the original.
func (e *Engine) ForLanguage(lang string) (*Engine, error) {
	if !language.Valid(lang) && strings.TrimSpace(lang) != "" {
		return nil, fmt.Errorf("%w: unknown language %q", ErrInvalidConfig, lang)
	}
	code := language.Normalize(lang)
	if code == language.Auto {
		code = ""
	}
	clone := *e
	clone.cfg = e.cfg.WithLanguage(code)
	clone.borrowed = true
	return &clone, nil
}

// Close releases the model and speech gate.
func (e *Engine) Close() error {
	if e.borrowed {
		return nil
	}
	var errs []error
	if e.model != nil {
		errs = append(errs, e.model.Close())
	}
	if e.gate != nil {
		errs = append(errs, e.gate.Close())
	}
	return errors.Join(errs...)
}

// TranscribeFile reads a WAV file and transcribes it.
func (e *Engine) TranscribeFile(ctx context.Context, path string, obs Observer) (*Result, error) {
	if !audio.IsWAVPath(path) {
		return nil, fmt.Errorf("transcribe %s: %w", path, audio.ErrNotWAV)
	}
	data, err := audio.ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	return e.Transcribe(ctx, data, obs)
}

// Transcribe picks chunked or single-pass decoding from the config.
func (e *Engine) Transcribe(ctx context.Context, data audio.Data, obs Observer) (*Result, error) {
	if e.cfg.UseChunking() {
		return e.TranscribeChunked(ctx, data, obs)
	}
	return e.TranscribeSingle(ctx, data, obs)
}

// TranscribeSingle decodes the whole input in one session run. Progress,
// segments and abort polling are forwarded to obs while the session runs.
func (e *Engine) TranscribeSingle(ctx context.Context, data audio.Data, obs Observer) (*Result, error) {
	started := time.Now()
	if obs == nil {
		obs = NopObserver{}
	}
	if err := data.RequireWhisperCompatible(); err != nil {
		return nil, err
	}
	if abortRequested(ctx, obs) {
		return nil, abortedError(ctx)
	}
	samples, err := e.prepare(data.Samples)
	if err != nil {
		return nil, err
	}

	session, err := e.model.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	e.logger.Debug("single-pass transcription started",
		logging.Duration("audio_duration", durationMS(data.DurationMS())),
		logging.Int("samples", len(samples)),
	)

	sampler := logging.NewProgressSampler(10)
	preview := newSegmentBuilder(e.cfg.ConfidenceFallback, 1)
	hooks := Hooks{
		Progress: func(percent int) {
			percent = clampPercent(percent)
			if sampler.ShouldLog(float64(percent), "transcribe") {
				e.logger.Debug("transcription progress", logging.Float64(logging.FieldProgressPercent, float64(percent)))
			}
			obs.OnProgress(percent)
		},
		Segment: func(raw RawSegment) {
			if seg, ok := preview.add(raw, 0); ok {
				obs.OnSegment(seg)
			}
		},
		Abort: func() bool {
			return abortRequested(ctx, obs)
		},
	}

	raw, err := session.Run(ctx, samples, e.cfg.Params(), hooks)
	if err != nil {
		return nil, e.runError(ctx, obs, err, "transcribe")
	}

	builder := newSegmentBuilder(e.cfg.ConfidenceFallback, 1)
	for _, r := range raw {
		builder.add(r, 0)
	}
	result := &Result{
		Text:            builder.text(),
		Language:        e.language(session),
		Segments:        builder.segments,
		ProcessingMS:    uint64(time.Since(started).Milliseconds()),
		AudioDurationMS: data.DurationMS(),
	}
	e.logComplete(result, 1)
	return result, nil
}

// TranscribeChunked splits the input at pauses and decodes the chunks in
// order within one session. Segment times are shifted by each chunk offset and
// indices continue across chunks. Any chunk failure fails the whole run.
func (e *Engine) TranscribeChunked(ctx context.Context, data audio.Data, obs Observer) (*Result, error) {
	started := time.Now()
	if obs == nil {
		obs = NopObserver{}
	}
	if err := data.RequireWhisperCompatible(); err != nil {
		return nil, err
	}

	chunks := chunker.Split(data, e.cfg.ChunkOptions(), e.logger)
	total := len(chunks)
	e.logger.Debug("chunked transcription started",
		logging.Duration("audio_duration", durationMS(data.DurationMS())),
		logging.Int("chunk_count", total),
	)

	session, err := e.model.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	params := e.cfg.Params()
	builder := newSegmentBuilder(e.cfg.ConfidenceFallback, 1)
	detected := ""
	for i, chunk := range chunks {
		if abortRequested(ctx, obs) {
			return nil, abortedError(ctx)
		}
		samples, err := e.prepare(chunk.Samples)
		if err != nil {
			return nil, err
		}
		raw, err := session.Run(ctx, samples, params, Hooks{})
		if err != nil {
			return nil, e.runError(ctx, obs, err, fmt.Sprintf("transcribe chunk %d/%d", i+1, total))
		}
		if detected == "" {
			detected = e.language(session)
		}

		kept := 0
		for _, r := range raw {
			if seg, ok := builder.add(r, chunk.StartOffsetMS); ok {
				kept++
				obs.OnSegment(seg)
			}
		}
		e.logger.Debug("chunk transcribed",
			logging.Int("chunk_index", i+1),
			logging.Int("chunk_count", total),
			logging.Uint64("start_offset_ms", chunk.StartOffsetMS),
			logging.Bool("silence_aligned", chunk.SilenceAligned),
			logging.Int("segments", kept),
		)
		obs.OnProgress((i + 1) * 100 / total)
	}
	obs.OnProgress(100)

	result := &Result{
		Text:            builder.text(),
		Language:        detected,
		Segments:        builder.segments,
		ProcessingMS:    uint64(time.Since(started).Milliseconds()),
		AudioDurationMS: data.DurationMS(),
	}
	if result.Language == "" {
		result.Language = e.cfg.Language
	}
	e.logComplete(result, total)
	return result, nil
}

func (e *Engine) prepare(samples []float32) ([]float32, error) {
	if e.gate == nil {
		return samples, nil
	}
	gated, err := e.gate.Apply(samples)
	if err != nil {
		return nil, fmt.Errorf("apply vad gate: %w", err)
	}
	return gated, nil
}

func (e *Engine) language(session Session) string {
	if e.cfg.Language != "" {
		return e.cfg.Language
	}
	if reporter, ok := session.(LanguageReporter); ok {
		return reporter.DetectedLanguage()
	}
	return ""
}

func (e *Engine) runError(ctx context.Context, obs Observer, err error, op string) error {
	if errors.Is(err, ErrAborted) || abortRequested(ctx, obs) {
		return abortedError(ctx)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) logComplete(result *Result, chunks int) {
	e.logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Duration("audio_duration", result.AudioDuration()),
		logging.Duration("processing_duration", result.ProcessingTime()),
		logging.Float64("real_time_factor", result.RealTimeFactor()),
		logging.Float64("average_confidence", float64(result.AverageConfidence())),
		logging.Int("segments", len(result.Segments)),
		logging.Int("chunk_count", chunks),
	)
}

func abortRequested(ctx context.Context, obs Observer) bool {
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return obs.ShouldAbort()
}

func abortedError(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
	return ErrAborted
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func durationMS(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
