package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"murmur/internal/audio"
	"murmur/internal/config"
	"murmur/internal/language"
	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/store"
	"murmur/internal/transcription"
)

// ErrNotFound reports an unknown job ID. It matches services.ErrNotFound.
var ErrNotFound = fmt.Errorf("job %w", services.ErrNotFound)

// ErrShuttingDown rejects submissions after Shutdown has started.
var ErrShuttingDown = errors.New("job manager shutting down")

// Request describes the audio to transcribe.
type Request struct {
	Data audio.Data
	// Source is a display name or path recorded with the stored entry.
	Source string
	// Language overrides the engine language; empty keeps the configured one.
	Language string
	// Fingerprint enables transcript reuse when set.
	Fingerprint string
}

// Manager schedules transcription jobs.
type Manager struct {
	cfg    *config.Config
	engine *transcription.Engine
	store  *store.Store
	logger *slog.Logger
	model  string

	slots chan struct{}

	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string
	closing  bool
	wg       sync.WaitGroup
	baseCtx  context.Context
	stopJobs context.CancelFunc
}

// NewManager constructs a manager. st may be nil to skip persistence.
func NewManager(cfg *config.Config, engine *transcription.Engine, st *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := cfg.Server.MaxConcurrentJobs
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		engine:   engine,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "jobs"),
		model:    ModelName(engine.Config().ModelPath),
		slots:    make(chan struct{}, limit),
		jobs:     make(map[string]*Job),
		baseCtx:  ctx,
		stopJobs: cancel,
	}
}

// ModelName derives the stored model identifier from a model path.
func ModelName(modelPath string) string {
	return filepath.Base(strings.TrimRight(strings.TrimSpace(modelPath), `/\`))
}

// Model returns the model identifier recorded on stored entries.
func (m *Manager) Model() string {
	return m.model
}

// Submit validates req and starts a job for it.
func (m *Manager) Submit(req Request) (*Job, error) {
	if err := req.Data.RequireWhisperCompatible(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "audio format", "", err)
	}
	if len(req.Data.Samples) == 0 {
		return nil, services.Wrap(services.ErrValidation, "submit", "audio", "no samples", nil)
	}
	engine := m.engine
	if lang := strings.TrimSpace(req.Language); lang != "" {
		derived, err := m.engine.ForLanguage(lang)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "submit", "language", lang, err)
		}
		engine = derived
		req.Language = derived.Config().Language
		if req.Language == "" {
			req.Language = language.Auto
		}
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	job := newJob(uuid.NewString(), req, m.cfg.Server.EventBuffer, cancel)
	m.jobs[job.id] = job
	m.order = append(m.order, job.id)
	m.wg.Add(1)
	m.mu.Unlock()

	ctx = services.WithJobID(ctx, job.id)
	go m.run(ctx, job, engine)

	m.logger.Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String(logging.FieldJobID, job.id),
		logging.String("source", req.Source),
		logging.Uint64("duration_ms", req.Data.DurationMS()),
	)
	return job, nil
}

// Get returns a job by ID.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// List returns snapshots of every job in submission order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

// Cancel requests cancellation. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) (Snapshot, error) {
	job, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if !job.Snapshot().State.Terminal() {
		m.logger.Info("job cancel requested", logging.String(logging.FieldJobID, id))
		job.abort()
	}
	return job.Snapshot(), nil
}

// Active returns the number of queued or running jobs.
func (m *Manager) Active() int {
	count := 0
	for _, snap := range m.List() {
		if !snap.State.Terminal() {
			count++
		}
	}
	return count
}

// Shutdown cancels every unfinished job and waits for workers to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.Unlock()

	m.stopJobs()
	for _, job := range jobs {
		job.abort()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
