package whisperx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"murmur/internal/audio"
	langpkg "murmur/internal/language"
	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/transcription"
)

// abortPollInterval is how often the abort predicate is checked while whisperx runs.
const abortPollInterval = 250 * time.Millisecond

// waitDelay bounds how long a killed process may hold its output pipes open.
const waitDelay = 2 * time.Second

// Runner executes name with args, streaming the process's standard output to
// stdout. Sessions call it on a helper goroutine and relay progress back to the
// goroutine that invoked Run, so stdout writes never reach caller hooks directly.
type Runner func(ctx context.Context, stdout io.Writer, name string, args ...string) error

// Option customizes a Model.
type Option func(*Model)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner Runner) Option {
	return func(m *Model) {
		if runner != nil {
			m.runner = runner
		}
	}
}

// WithLogger attaches a logger for per-run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logging.NewComponentLogger(logger, "whisperx")
	}
}

// Model launches whisperx for every session run. It holds no weights itself;
// the tool loads the model named by the model path on each invocation.
type Model struct {
	cfg          Config
	model        string
	runner       Runner
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewLoader returns a transcription.Loader that builds whisperx models from cfg.
func NewLoader(cfg Config, opts ...Option) transcription.Loader {
	return func(tc transcription.Config) (transcription.Model, error) {
		return New(cfg, tc.ModelPath, opts...)
	}
}

// New validates cfg and returns a Model for the given model path or name.
func New(cfg Config, model string, opts ...Option) (*Model, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "whisperx", "model path required", nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	if cfg.VADMethod == VADMethodPyannote && cfg.HFToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "whisperx", "pyannote vad requires a Hugging Face token", nil)
	}
	m := &Model{
		cfg:          cfg,
		model:        model,
		runner:       runCommand,
		logger:       logging.NewNop(),
		pollInterval: abortPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the configured model for logging.
func (m *Model) Name() string {
	return m.model
}

// CUDAEnabled returns whether CUDA is enabled.
func (m *Model) CUDAEnabled() bool {
	return m.cfg.CUDAEnabled
}

// NewSession allocates a private scratch directory for one transcription call.
func (m *Model) NewSession() (transcription.Session, error) {
	if m.cfg.WorkDir != "" {
		if err := os.MkdirAll(m.cfg.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("whisperx: ensure work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(m.cfg.WorkDir, "whisperx-*")
	if err != nil {
		return nil, fmt.Errorf("whisperx: create session dir: %w", err)
	}
	return &session{model: m, dir: dir}, nil
}

// Close is a no-op; whisperx processes exit after every run.
func (m *Model) Close() error {
	return nil
}

type session struct {
	model *Model
	dir   string
	runs  int

	mu       sync.Mutex
	language string
}

func (s *session) Run(ctx context.Context, samples []float32, params transcription.Params, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.runs++
	base := fmt.Sprintf("chunk-%03d", s.runs)
	wavPath := filepath.Join(s.dir, base+".wav")
	jsonPath := filepath.Join(s.dir, base+".json")
	data := audio.Data{Samples: samples, SampleRate: audio.WhisperSampleRate, Channels: 1}
	if err := audio.WriteWAVFile(wavPath, data); err != nil {
		return nil, fmt.Errorf("whisperx: stage input: %w", err)
	}
	defer func() {
		_ = os.Remove(wavPath)
		_ = os.Remove(jsonPath)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := s.model.buildArgs(wavPath, s.dir, params)
	s.model.logger.Debug("whisperx run started",
		logging.String("model", s.model.model),
		logging.Duration("audio_duration", time.Duration(data.DurationMS())*time.Millisecond),
		logging.Bool("cuda", s.model.cfg.CUDAEnabled),
	)
	started := time.Now()
	percents := make(chan int, 16)
	done := make(chan error, 1)
	go func() {
		progress := newProgressWriter(func(p int) { percents <- p })
		err := s.model.runner(runCtx, progress, s.model.cfg.binary(), args...)
		progress.Flush()
		close(percents)
		done <- err
	}()
	aborted, err := s.model.await(cancel, percents, done, hooks)

	if aborted {
		return nil, transcription.ErrAborted
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "run", err)
	}

	payload, err := LoadPayload(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "read output", err)
	}
	raw := payload.RawSegments()
	if hooks.Segment != nil {
		for _, seg := range raw {
			hooks.Segment(seg)
		}
	}
	if hooks.Progress != nil {
		hooks.Progress(100)
	}

	if lang := strings.TrimSpace(payload.Language); lang != "" {
		s.mu.Lock()
		if s.language == "" {
			s.language = langpkg.ToISO2(lang)
		}
		s.mu.Unlock()
	}
	s.model.logger.Debug("whisperx run finished",
		logging.Duration("processing_duration", time.Since(started)),
		logging.Int("segments", len(raw)),
		logging.String("language", payload.Language),
	)
	return raw, nil
}

// DetectedLanguage reports the first language whisperx detected in this session.
func (s *session) DetectedLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *session) Close() error {
	return os.RemoveAll(s.dir)
}

// await drives the hooks on the calling goroutine until the runner returns.
// Progress arrives over percents, which the runner side closes before done.
func (m *Model) await(cancel context.CancelFunc, percents <-chan int, done <-chan error, hooks transcription.Hooks) (bool, error) {
	var tick <-chan time.Time
	if hooks.Abort != nil {
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	aborted := false
	report := func(p int) {
		if hooks.Progress != nil && !aborted {
			hooks.Progress(p)
		}
	}
	pending := percents
	for {
		select {
		case p, ok := <-pending:
			if !ok {
				pending = nil
				continue
			}
			report(p)
		case <-tick:
			if hooks.Abort() {
				aborted = true
				tick = nil
				cancel()
			}
		case err := <-done:
			if pending != nil {
				for p := range pending {
					report(p)
				}
			}
			return aborted, err
		}
	}
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (m *Model) buildArgs(source, outputDir string, params transcription.Params) []string {
	args := make([]string, 0, 40)

	// Index URLs
	if m.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", m.model,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--batch_size", strconv.Itoa(m.cfg.BatchSize),
		"--temperature", strconv.FormatFloat(float64(params.Temperature), 'f', 2, 32),
		"--print_progress", "True",
	)
	if params.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(params.Threads))
	}

	// VAD method
	args = append(args, "--vad_method", m.cfg.VADMethod)
	if m.cfg.VADMethod == VADMethodPyannote && m.cfg.HFToken != "" {
		args = append(args, "--hf_token", m.cfg.HFToken)
	}

	// Language
	if lang := langpkg.ToISO2(params.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if params.Translate {
		args = append(args, "--task", "translate")
	}
	if prompt := strings.TrimSpace(params.InitialPrompt); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	if !m.cfg.Align {
		args = append(args, "--no_align")
	}

	// Device
	if m.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
		if m.cfg.ComputeType != "" {
			args = append(args, "--compute_type", m.cfg.ComputeType)
		}
	} else {
		compute := m.cfg.ComputeType
		if compute == "" {
			compute = CPUComputeType
		}
		args = append(args, "--device", CPUDevice, "--compute_type", compute)
	}

	if params.Debug {
		args = append(args, "--verbose", "True")
	} else {
		args = append(args, "--verbose", "False")
	}
	return args
}

// runCommand executes a command, streaming stdout and keeping stderr for errors.
func runCommand(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 2048))
	}
	return nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
