package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"murmur/internal/config"
	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

// scriptedModel returns fixed segments after hold is closed, or blocks until
// aborted when block is set.
type scriptedModel struct {
	mu       sync.Mutex
	segments []transcription.RawSegment
	err      error
	block    bool
	hold     chan struct{}
	calls    int
	started  chan struct{}
	language string
}

func (m *scriptedModel) NewSession() (transcription.Session, error) {
	return &scriptedSession{model: m}, nil
}

func (m *scriptedModel) Close() error { return nil }

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type scriptedSession struct {
	model *scriptedModel
}

func (s *scriptedSession) Run(ctx context.Context, _ []float32, _ transcription.Params, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
	m := s.model
	m.mu.Lock()
	m.calls++
	started := m.started
	m.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if m.block {
		for {
			if hooks.Abort != nil && hooks.Abort() {
				return nil, transcription.ErrAborted
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Millisecond):
			}
		}
	}
	if m.hold != nil {
		select {
		case <-m.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	hooks.Progress(50)
	for _, seg := range m.segments {
		hooks.Segment(seg)
	}
	hooks.Progress(100)
	return m.segments, nil
}

func (s *scriptedSession) Close() error { return nil }

func (s *scriptedSession) DetectedLanguage() string { return s.model.language }

func tokens(p float32) []transcription.Token {
	return []transcription.Token{{Text: "x", Probability: p, Readable: true}}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithModelFile(), testsupport.WithChunking(0, 0))
	cfg.Transcription.FilterHallucinations = true
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, model *scriptedModel) *transcription.Engine {
	t.Helper()
	loader := func(transcription.Config) (transcription.Model, error) { return model, nil }
	engine, err := transcription.New(transcription.FromSettings(cfg), loader, nil)
	if err != nil {
		t.Fatalf("transcription.New: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}
