package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"murmur/internal/jobs"
	"murmur/internal/services"
	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

func waitJob(t *testing.T, job *jobs.Job) jobs.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("job %s did not finish: %v", job.ID(), err)
	}
	return snap
}

func speech() jobs.Request {
	return jobs.Request{Data: testsupport.Mono(testsupport.Tone(1000, 440, 0.5)), Source: "clip.wav"}
}

func TestSubmitPersistsResult(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	model := &scriptedModel{
		language: "en",
		segments: []transcription.RawSegment{
			{StartMS: 0, EndMS: 400, Text: "hello there", Tokens: tokens(0.9)},
			{StartMS: 500, EndMS: 900, Text: "Subtitles by the Amara.org community", Tokens: tokens(0.8)},
		},
	}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), st, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitJob(t, job)
	if snap.State != jobs.StateSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", snap.State, snap.Error)
	}
	if snap.Progress != 100 || snap.Segments != 2 || snap.EntryID == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.StartedAt == nil || snap.FinishedAt == nil {
		t.Fatal("expected start and finish times")
	}

	entry, err := st.Get(context.Background(), snap.EntryID)
	if err != nil {
		t.Fatalf("Get entry: %v", err)
	}
	if len(entry.Result.Segments) != 2 {
		t.Fatalf("expected raw result to keep both segments, got %d", len(entry.Result.Segments))
	}
	if len(entry.Subtitles) != 1 || entry.Subtitles[0].Text != "hello there" || entry.Subtitles[0].Index != 1 {
		t.Fatalf("expected credit line filtered from subtitles, got %+v", entry.Subtitles)
	}
	if entry.Language != "en" || entry.Model != "ggml-test.bin" || entry.SourcePath != "clip.wav" {
		t.Fatalf("unexpected entry metadata: %+v", entry)
	}

	if _, err := os.Stat(filepath.Join(cfg.JobLogDir(), job.ID()+".log")); err != nil {
		t.Fatalf("expected job log file: %v", err)
	}
}

func TestMinConfidenceDropsSegments(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Transcription.MinConfidence = 0.5
	model := &scriptedModel{segments: []transcription.RawSegment{
		{StartMS: 0, EndMS: 400, Text: "keep", Tokens: tokens(0.9)},
		{StartMS: 400, EndMS: 800, Text: "drop", Tokens: tokens(0.1)},
	}}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitJob(t, job)
	result := job.Result()
	if result == nil || len(result.Segments) != 1 || result.Text != "keep" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(job.Segments()) != 2 {
		t.Fatalf("streamed segments should be unfiltered, got %d", len(job.Segments()))
	}
}

func TestCancelRunningJob(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	model := &scriptedModel{block: true, started: make(chan struct{}, 1)}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), st, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-model.started:
	case <-time.After(5 * time.Second):
		t.Fatal("model never started")
	}
	if _, err := mgr.Cancel(job.ID()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap := waitJob(t, job)
	if snap.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s", snap.State)
	}
	if snap.Error != "" || snap.ErrorCode != "" {
		t.Fatalf("cancellation must not be reported as a failure: %+v", snap)
	}
	if count, _ := st.Count(context.Background()); count != 0 {
		t.Fatalf("expected nothing persisted, got %d entries", count)
	}

	again, err := mgr.Cancel(job.ID())
	if err != nil || again.State != jobs.StateCancelled {
		t.Fatalf("cancelling a finished job should be a no-op, got %+v err=%v", again, err)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.MaxConcurrentJobs = 1
	model := &scriptedModel{block: true, started: make(chan struct{}, 1)}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	first, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-model.started
	second, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap := second.Snapshot(); snap.State != jobs.StateQueued {
		t.Fatalf("expected queued, got %s", snap.State)
	}
	if mgr.Active() != 2 {
		t.Fatalf("expected 2 active jobs, got %d", mgr.Active())
	}

	mgr.Cancel(second.ID())
	if snap := waitJob(t, second); snap.State != jobs.StateCancelled || snap.StartedAt != nil {
		t.Fatalf("expected queued job cancelled before start, got %+v", snap)
	}
	mgr.Cancel(first.ID())
	waitJob(t, first)
	if model.callCount() != 1 {
		t.Fatalf("expected one model run, got %d", model.callCount())
	}
}

func TestFailedJobCarriesErrorCode(t *testing.T) {
	cfg := newTestConfig(t)
	model := &scriptedModel{err: services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "run", errors.New("exit status 1"))}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitJob(t, job)
	if snap.State != jobs.StateFailed || snap.ErrorCode != "external_tool" || snap.Error == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !errors.Is(job.Err(), services.ErrExternalTool) {
		t.Fatalf("expected wrapped error, got %v", job.Err())
	}
}

func TestSubmitValidation(t *testing.T) {
	cfg := newTestConfig(t)
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, &scriptedModel{}), nil, nil)

	stereo := speech()
	stereo.Data.Channels = 2
	if _, err := mgr.Submit(stereo); !errors.Is(err, services.ErrValidation) || !errors.Is(err, transcription.ErrChannels) {
		t.Fatalf("expected channel validation error, got %v", err)
	}
	badLang := speech()
	badLang.Language = "not a language!"
	if _, err := mgr.Submit(badLang); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected language validation error, got %v", err)
	}
	if _, err := mgr.Get("missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(mgr.List()) != 0 {
		t.Fatalf("rejected submissions must not be listed")
	}
}

func TestFingerprintReusesEntry(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	model := &scriptedModel{language: "de", segments: []transcription.RawSegment{
		{StartMS: 0, EndMS: 500, Text: "guten tag", Tokens: tokens(0.9)},
	}}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), st, nil)

	req := speech()
	req.Fingerprint = "fp-1"
	first, err := mgr.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	firstSnap := waitJob(t, first)

	second, err := mgr.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitJob(t, second)
	if !snap.Cached || snap.EntryID != firstSnap.EntryID {
		t.Fatalf("expected cached entry %s, got %+v", firstSnap.EntryID, snap)
	}
	if model.callCount() != 1 {
		t.Fatalf("expected model to run once, got %d", model.callCount())
	}
	if second.Result() == nil || second.Result().Text != "guten tag" {
		t.Fatalf("unexpected cached result: %+v", second.Result())
	}

	req.Language = "fr"
	third, err := mgr.Submit(req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap := waitJob(t, third); snap.Cached {
		t.Fatal("different language must not reuse the cached entry")
	}
	if snap := third.Snapshot(); snap.Language != "fr" {
		t.Fatalf("expected normalized language fr, got %q", snap.Language)
	}
}

func TestSubscribeStreamsEvents(t *testing.T) {
	cfg := newTestConfig(t)
	model := &scriptedModel{
		hold: make(chan struct{}),
		segments: []transcription.RawSegment{
			{StartMS: 0, EndMS: 400, Text: "one", Tokens: tokens(0.9)},
			{StartMS: 400, EndMS: 800, Text: "two", Tokens: tokens(0.9)},
		},
	}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap, events, cancel := job.Subscribe()
	defer cancel()
	if snap.ID != job.ID() || snap.State.Terminal() {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	close(model.hold)

	var (
		segments []string
		states   []jobs.State
		progress []int
	)
	for evt := range events {
		if evt.JobID != job.ID() {
			t.Fatalf("event for wrong job: %+v", evt)
		}
		switch evt.Type {
		case jobs.EventSegment:
			segments = append(segments, evt.Segment.Text)
		case jobs.EventState:
			states = append(states, evt.State)
		case jobs.EventProgress:
			progress = append(progress, evt.Progress)
		}
	}
	if len(segments) != 2 || segments[0] != "one" || segments[1] != "two" {
		t.Fatalf("unexpected segments: %v", segments)
	}
	if len(states) == 0 || states[len(states)-1] != jobs.StateSucceeded {
		t.Fatalf("expected final succeeded state, got %v", states)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress not increasing: %v", progress)
		}
	}

	_, closed, _ := job.Subscribe()
	if _, ok := <-closed; ok {
		t.Fatal("subscribing to a finished job should return a closed channel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	cfg := newTestConfig(t)
	model := &scriptedModel{block: true, started: make(chan struct{}, 1)}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, events, cancel := job.Subscribe()
	cancel()
	cancel()
	for range events {
	}
	mgr.Cancel(job.ID())
	if snap := waitJob(t, job); snap.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s", snap.State)
	}
}

func TestShutdownCancelsJobs(t *testing.T) {
	cfg := newTestConfig(t)
	model := &scriptedModel{block: true, started: make(chan struct{}, 1)}
	mgr := jobs.NewManager(cfg, newTestEngine(t, cfg, model), nil, nil)

	job, err := mgr.Submit(speech())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-model.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if snap := job.Snapshot(); snap.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s", snap.State)
	}
	if _, err := mgr.Submit(speech()); !errors.Is(err, jobs.ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}
