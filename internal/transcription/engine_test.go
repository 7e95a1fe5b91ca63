package transcription_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"murmur/internal/audio"
	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

func newEngine(t *testing.T, cfg transcription.Config, model *fakeModel, opts ...transcription.Option) *transcription.Engine {
	t.Helper()
	engine, err := transcription.New(cfg, model.loader(), nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestNewValidatesBeforeLoading(t *testing.T) {
	loaded := false
	loader := func(transcription.Config) (transcription.Model, error) {
		loaded = true
		return &fakeModel{}, nil
	}
	_, err := transcription.New(transcription.DefaultConfig("").WithThreads(0), loader, nil)
	if !errors.Is(err, transcription.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if loaded {
		t.Fatal("model must not load for an invalid config")
	}
}

func TestNewReportsLoaderFailure(t *testing.T) {
	boom := errors.New("bad weights")
	loader := func(transcription.Config) (transcription.Model, error) { return nil, boom }
	_, err := transcription.New(transcription.DefaultConfig(writeModel(t)), loader, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestCloseReleasesModel(t *testing.T) {
	model := &fakeModel{}
	engine, err := transcription.New(transcription.DefaultConfig(writeModel(t)), model.loader(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !model.closed {
		t.Fatal("expected model to be closed")
	}
}

func TestTranscribeSingleExtractsSegments(t *testing.T) {
	model := &fakeModel{run: func(_ int, _ []float32, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
		raw := []transcription.RawSegment{
			{StartMS: 0, EndMS: 900, Text: "  Hello there ", Tokens: readable(0.9, 0.7)},
			{StartMS: 900, EndMS: 1000, Text: "   "},
			{StartMS: 1000, EndMS: 1800, Text: "no tokens"},
			{StartMS: 1800, EndMS: 2500, Text: "unreadable", Tokens: []transcription.Token{{Text: "[_BEG_]"}}},
		}
		hooks.Progress(50)
		for _, r := range raw {
			hooks.Segment(r)
		}
		hooks.Progress(140)
		return raw, nil
	}}
	cfg := transcription.DefaultConfig(writeModel(t)).WithLanguage("en").WithConfidenceFallback(0.25)
	engine := newEngine(t, cfg, model)
	obs := &recorder{}

	result, err := engine.TranscribeSingle(context.Background(), testsupport.Mono(testsupport.Level(3000, 0.2)), obs)
	if err != nil {
		t.Fatalf("TranscribeSingle: %v", err)
	}

	if result.Text != "Hello there no tokens unreadable" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if len(result.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %+v", result.Segments)
	}
	wantConfidence := []float32{0.8, 0, 0.25}
	for i, seg := range result.Segments {
		if seg.Index != i+1 {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if diff := seg.Confidence - wantConfidence[i]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("segment %d confidence = %v, want %v", i, seg.Confidence, wantConfidence[i])
		}
	}
	if result.Language != "en" {
		t.Fatalf("expected configured language, got %q", result.Language)
	}
	if result.AudioDurationMS != 3000 {
		t.Fatalf("expected 3000ms audio, got %d", result.AudioDurationMS)
	}
	if !reflect.DeepEqual(obs.progress, []int{50, 100}) {
		t.Fatalf("unexpected progress %v", obs.progress)
	}
	if !reflect.DeepEqual(obs.segments, result.Segments) {
		t.Fatalf("streamed segments %+v differ from result %+v", obs.segments, result.Segments)
	}
	if model.params[0].Language != "en" {
		t.Fatalf("expected language passed to session, got %+v", model.params[0])
	}
}

func TestTranscribeSingleReportsDetectedLanguage(t *testing.T) {
	model := &fakeModel{language: "fr"}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model)
	result, err := engine.TranscribeSingle(context.Background(), testsupport.Mono(testsupport.Level(500, 0.2)), nil)
	if err != nil {
		t.Fatalf("TranscribeSingle: %v", err)
	}
	if result.Language != "fr" {
		t.Fatalf("expected detected language, got %q", result.Language)
	}
}

func TestTranscribeRequiresWhisperFormat(t *testing.T) {
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), &fakeModel{})

	_, err := engine.Transcribe(context.Background(), audio.Data{Samples: make([]float32, 4410), SampleRate: 44100, Channels: 1}, nil)
	if !errors.Is(err, transcription.ErrSampleRate) {
		t.Fatalf("expected ErrSampleRate, got %v", err)
	}
	_, err = engine.Transcribe(context.Background(), audio.Data{Samples: make([]float32, 3200), SampleRate: 16000, Channels: 2}, nil)
	if !errors.Is(err, transcription.ErrChannels) {
		t.Fatalf("expected ErrChannels, got %v", err)
	}
}

func TestTranscribeSingleAbortIsDistinct(t *testing.T) {
	aborted := false
	model := &fakeModel{run: func(_ int, _ []float32, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
		if hooks.Abort() {
			return nil, transcription.ErrAborted
		}
		return nil, errors.New("abort was not polled")
	}}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model)
	obs := &recorder{abort: func() bool {
		defer func() { aborted = true }()
		return aborted
	}}

	result, err := engine.TranscribeSingle(context.Background(), testsupport.Mono(testsupport.Level(500, 0.2)), obs)
	if !errors.Is(err, transcription.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result on abort, got %+v", result)
	}
}

func TestTranscribeContextCancelled(t *testing.T) {
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), &fakeModel{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Transcribe(ctx, testsupport.Mono(testsupport.Level(500, 0.2)), nil)
	if !errors.Is(err, transcription.ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected aborted + canceled, got %v", err)
	}
}

func TestTranscribeChunkedMergesTimeline(t *testing.T) {
	model := &fakeModel{run: func(call int, _ []float32, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
		if hooks.Progress != nil || hooks.Segment != nil || hooks.Abort != nil {
			return nil, errors.New("chunk runs must not receive inner hooks")
		}
		return []transcription.RawSegment{
			{StartMS: 0, EndMS: 400, Text: "first", Tokens: readable(0.5)},
			{StartMS: 500, EndMS: 900, Text: "second", Tokens: readable(1)},
		}, nil
	}}
	cfg := transcription.DefaultConfig(writeModel(t)).WithChunking(60000, 1000)
	engine := newEngine(t, cfg, model)
	obs := &recorder{}

	result, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(150_000, 0.5)), obs)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if model.calls != 3 || model.sessions != 1 {
		t.Fatalf("expected 3 runs in 1 session, got %d runs %d sessions", model.calls, model.sessions)
	}
	wantStarts := []uint64{0, 500, 59000, 59500, 118000, 118500}
	if len(result.Segments) != len(wantStarts) {
		t.Fatalf("expected %d segments, got %d", len(wantStarts), len(result.Segments))
	}
	for i, seg := range result.Segments {
		if seg.Index != i+1 {
			t.Fatalf("segment %d index = %d", i, seg.Index)
		}
		if seg.StartMS != wantStarts[i] {
			t.Fatalf("segment %d start = %d, want %d", i, seg.StartMS, wantStarts[i])
		}
		if seg.EndMS < seg.StartMS {
			t.Fatalf("segment %d ends before it starts: %+v", i, seg)
		}
	}
	if result.Text != "first second first second first second" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if !reflect.DeepEqual(obs.progress, []int{33, 66, 100, 100}) {
		t.Fatalf("unexpected progress %v", obs.progress)
	}
	if !reflect.DeepEqual(obs.segments, result.Segments) {
		t.Fatal("expected every merged segment to be streamed")
	}
}

func TestTranscribeChunkedKeepsStartsMonotonic(t *testing.T) {
	model := &fakeModel{run: func(call int, _ []float32, _ transcription.Hooks) ([]transcription.RawSegment, error) {
		if call == 0 {
			return []transcription.RawSegment{{StartMS: 59500, EndMS: 59800, Text: "late"}}, nil
		}
		return []transcription.RawSegment{{StartMS: 0, EndMS: 200, Text: "early"}}, nil
	}}
	cfg := transcription.DefaultConfig(writeModel(t)).WithChunking(60000, 1000)
	engine := newEngine(t, cfg, model)

	result, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(100_000, 0.5)), nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", result.Segments)
	}
	first, second := result.Segments[0], result.Segments[1]
	if second.StartMS < first.StartMS {
		t.Fatalf("starts decreased across chunks: %+v", result.Segments)
	}
	if second.EndMS < second.StartMS {
		t.Fatalf("segment ends before start: %+v", second)
	}
}

func TestTranscribeChunkedFailsWholeRun(t *testing.T) {
	boom := errors.New("decoder crashed")
	model := &fakeModel{run: func(call int, _ []float32, _ transcription.Hooks) ([]transcription.RawSegment, error) {
		if call == 1 {
			return nil, boom
		}
		return []transcription.RawSegment{{StartMS: 0, EndMS: 100, Text: "ok"}}, nil
	}}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)).WithChunking(60000, 1000), model)

	result, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(150_000, 0.5)), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected chunk error, got %v", err)
	}
	if errors.Is(err, transcription.ErrAborted) {
		t.Fatal("processing failure must not look like an abort")
	}
	if result != nil {
		t.Fatalf("expected no partial result, got %+v", result)
	}
}

func TestTranscribeChunkedAbortsBetweenChunks(t *testing.T) {
	model := &fakeModel{run: func(int, []float32, transcription.Hooks) ([]transcription.RawSegment, error) {
		return []transcription.RawSegment{{StartMS: 0, EndMS: 100, Text: "ok"}}, nil
	}}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)).WithChunking(60000, 1000), model)
	obs := &recorder{}
	obs.abort = func() bool { return len(obs.segments) > 0 }

	_, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(150_000, 0.5)), obs)
	if !errors.Is(err, transcription.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("expected abort before the second chunk, got %d runs", model.calls)
	}
}

func TestConcurrentCallsUseIndependentSessions(t *testing.T) {
	model := &fakeModel{run: func(int, []float32, transcription.Hooks) ([]transcription.RawSegment, error) {
		return []transcription.RawSegment{{StartMS: 0, EndMS: 100, Text: "hi"}}, nil
	}}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(200, 0.2)), nil); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	wg.Wait()
	if model.sessions != 4 {
		t.Fatalf("expected 4 sessions, got %d", model.sessions)
	}
}

type doublingGate struct{ applied int }

func (g *doublingGate) Apply(samples []float32) ([]float32, error) {
	g.applied++
	return append(append([]float32(nil), samples...), samples...), nil
}

func (g *doublingGate) Close() error { return nil }

func TestGateRunsBeforeInference(t *testing.T) {
	gate := &doublingGate{}
	model := &fakeModel{}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model, transcription.WithGate(gate))

	if _, err := engine.Transcribe(context.Background(), testsupport.Mono(testsupport.Level(100, 0.2)), nil); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gate.applied != 1 || model.lengths[0] != 3200 {
		t.Fatalf("expected gated samples, applied=%d lengths=%v", gate.applied, model.lengths)
	}
}

func TestTranscribeFileRejectsNonWAV(t *testing.T) {
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), &fakeModel{})
	_, err := engine.TranscribeFile(context.Background(), "talk.mp3", nil)
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Fatalf("expected ErrNotWAV, got %v", err)
	}
}

func TestTranscribeFileReadsWAV(t *testing.T) {
	model := &fakeModel{}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model)
	path := testsupport.WriteWAV(t, t.TempDir(), "clip.wav", testsupport.Mono(testsupport.Tone(250, 440, 0.3)))

	result, err := engine.TranscribeFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if result.AudioDurationMS != 250 || model.lengths[0] != 4000 {
		t.Fatalf("unexpected decode: duration=%d lengths=%v", result.AudioDurationMS, model.lengths)
	}
}

func TestForLanguageSharesModel(t *testing.T) {
	model := &fakeModel{}
	engine := newEngine(t, transcription.DefaultConfig(writeModel(t)), model)

	german, err := engine.ForLanguage("German")
	if err != nil {
		t.Fatalf("ForLanguage: %v", err)
	}
	if _, err := german.TranscribeSingle(context.Background(), testsupport.Mono(testsupport.Level(500, 0.2)), nil); err != nil {
		t.Fatalf("TranscribeSingle: %v", err)
	}
	if got := model.params[0].Language; got != "de" {
		t.Fatalf("expected normalized language de, got %q", got)
	}
	if engine.Config().Language != "" {
		t.Fatalf("original engine language changed to %q", engine.Config().Language)
	}

	auto, err := engine.ForLanguage("auto")
	if err != nil {
		t.Fatalf("ForLanguage(auto): %v", err)
	}
	if auto.Config().Language != "" {
		t.Fatalf("expected detection for auto, got %q", auto.Config().Language)
	}

	if err := german.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if model.closed {
		t.Fatal("derived engine must not close the shared model")
	}
	if _, err := engine.ForLanguage("not a language!"); !errors.Is(err, transcription.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
