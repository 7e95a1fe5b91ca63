package transcription_test

import (
	"context"
	"sync"

	"murmur/internal/transcription"
)

type runFunc func(call int, samples []float32, hooks transcription.Hooks) ([]transcription.RawSegment, error)

type fakeModel struct {
	mu       sync.Mutex
	run      runFunc
	sessions int
	calls    int
	params   []transcription.Params
	lengths  []int
	closed   bool
	language string
}

func (m *fakeModel) NewSession() (transcription.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	return &fakeSession{model: m}, nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func (m *fakeModel) loader() transcription.Loader {
	return func(transcription.Config) (transcription.Model, error) {
		return m, nil
	}
}

type fakeSession struct {
	model *fakeModel
}

func (s *fakeSession) Run(_ context.Context, samples []float32, params transcription.Params, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
	s.model.mu.Lock()
	call := s.model.calls
	s.model.calls++
	s.model.params = append(s.model.params, params)
	s.model.lengths = append(s.model.lengths, len(samples))
	run := s.model.run
	s.model.mu.Unlock()
	if run == nil {
		return nil, nil
	}
	return run(call, samples, hooks)
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) DetectedLanguage() string { return s.model.language }

func readable(probs ...float32) []transcription.Token {
	out := make([]transcription.Token, 0, len(probs))
	for _, p := range probs {
		out = append(out, transcription.Token{Text: "t", Probability: p, Readable: true})
	}
	return out
}

type recorder struct {
	mu       sync.Mutex
	progress []int
	segments []transcription.Segment
	abort    func() bool
}

func (r *recorder) OnProgress(p int) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
}

func (r *recorder) OnSegment(seg transcription.Segment) {
	r.mu.Lock()
	r.segments = append(r.segments, seg)
	r.mu.Unlock()
}

func (r *recorder) ShouldAbort() bool {
	return r.abort != nil && r.abort()
}
