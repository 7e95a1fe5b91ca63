package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"murmur/internal/api"
	"murmur/internal/config"
	"murmur/internal/jobs"
	"murmur/internal/logging"
	"murmur/internal/store"
	"murmur/internal/subtitles"
	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

type fixedModel struct {
	segments []transcription.RawSegment
	hold     chan struct{}
}

func (m *fixedModel) NewSession() (transcription.Session, error) { return &fixedSession{model: m}, nil }

func (m *fixedModel) Close() error { return nil }

type fixedSession struct {
	model *fixedModel
}

func (s *fixedSession) Run(ctx context.Context, _ []float32, _ transcription.Params, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
	if s.model.hold != nil {
		select {
		case <-s.model.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for _, seg := range s.model.segments {
		hooks.Segment(seg)
	}
	hooks.Progress(100)
	return s.model.segments, nil
}

func (s *fixedSession) Close() error { return nil }

func (s *fixedSession) DetectedLanguage() string { return "en" }

type harness struct {
	cfg     *config.Config
	store   *store.Store
	manager *jobs.Manager
	hub     *logging.StreamHub
	server  *httptest.Server
}

func newHarness(t *testing.T, model *fixedModel, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithModelFile(), testsupport.WithChunking(0, 0)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)

	loader := func(transcription.Config) (transcription.Model, error) { return model, nil }
	engine, err := transcription.New(transcription.FromSettings(cfg), loader, nil)
	if err != nil {
		t.Fatalf("transcription.New: %v", err)
	}
	hub := logging.NewStreamHub(64)
	mgr := jobs.NewManager(cfg, engine, st, nil)
	srv := httptest.NewServer(api.New(cfg, mgr, st, hub, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		engine.Close()
	})
	return &harness{cfg: cfg, store: st, manager: mgr, hub: hub, server: srv}
}

func speechWAV(t *testing.T) []byte {
	t.Helper()
	path := testsupport.WriteWAV(t, t.TempDir(), "clip.wav", testsupport.Mono(testsupport.Tone(500, 440, 0.5)))
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return payload
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (h *harness) submit(t *testing.T, query string) jobs.Snapshot {
	t.Helper()
	resp, err := http.Post(h.server.URL+"/v1/jobs"+query, "audio/wav", bytes.NewReader(speechWAV(t)))
	if err != nil {
		t.Fatalf("POST /v1/jobs: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/v1/jobs/") {
		t.Fatalf("unexpected Location %q", loc)
	}
	var out api.JobResponse
	decodeBody(t, resp, &out)
	return out.Job
}

func (h *harness) wait(t *testing.T, id string) jobs.Snapshot {
	t.Helper()
	job, err := h.manager.Get(id)
	if err != nil {
		t.Fatalf("Get job: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("job did not finish: %v", err)
	}
	return snap
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	resp, err := http.Get(h.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var out api.HealthResponse
	decodeBody(t, resp, &out)
	if out.Status != "ok" || out.Model != "ggml-test.bin" || out.Database != "ok" {
		t.Fatalf("unexpected health: %+v", out)
	}
}

func TestSubmitJobAndExportSubtitles(t *testing.T) {
	h := newHarness(t, &fixedModel{segments: []transcription.RawSegment{
		{StartMS: 0, EndMS: 400, Text: "hello there", Tokens: []transcription.Token{{Text: "x", Probability: 0.9, Readable: true}}},
	}})

	snap := h.wait(t, h.submit(t, "?source=clip.wav&language=en").ID)
	if snap.State != jobs.StateSucceeded || snap.EntryID == "" {
		t.Fatalf("unexpected job: %+v", snap)
	}

	resp, err := http.Get(h.server.URL + "/v1/jobs/" + snap.ID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	var got api.JobResponse
	decodeBody(t, resp, &got)
	if got.Job.Language != "en" || got.Job.Source != "clip.wav" {
		t.Fatalf("unexpected job view: %+v", got.Job)
	}

	resp, err = http.Get(h.server.URL + "/v1/entries/" + snap.EntryID + "/subtitles.srt")
	if err != nil {
		t.Fatalf("GET subtitles: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != subtitles.SRT.ContentType() {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	want := "1\n00:00:00,000 --> 00:00:00,400\nhello there\n\n"
	if body.String() != want {
		t.Fatalf("unexpected srt:\n%q\nwant\n%q", body.String(), want)
	}

	resp, err = http.Get(h.server.URL + "/v1/entries")
	if err != nil {
		t.Fatalf("GET entries: %v", err)
	}
	var list api.EntryListResponse
	decodeBody(t, resp, &list)
	if len(list.Entries) != 1 || list.Entries[0].Subtitles != 1 || list.Entries[0].DurationMS != 500 {
		t.Fatalf("unexpected entries: %+v", list.Entries)
	}
}

func TestSubmitRejectsBadAudio(t *testing.T) {
	h := newHarness(t, &fixedModel{})

	resp, err := http.Post(h.server.URL+"/v1/jobs", "audio/wav", strings.NewReader("not a wav"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var out api.ErrorResponse
	decodeBody(t, resp, &out)
	if resp.StatusCode != http.StatusBadRequest || out.Code != "validation" {
		t.Fatalf("expected 400 validation, got %d %+v", resp.StatusCode, out)
	}

	resp, err = http.Post(h.server.URL+"/v1/jobs?language=klingon", "audio/wav", bytes.NewReader(speechWAV(t)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown language, got %d", resp.StatusCode)
	}
}

func TestSubmitEnforcesUploadLimit(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	h.cfg.Server.MaxUploadMB = 0

	resp, err := http.Post(h.server.URL+"/v1/jobs", "audio/wav", bytes.NewReader(speechWAV(t)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestUnknownJobAndEntry(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	for _, path := range []string{"/v1/jobs/missing", "/v1/entries/missing", "/v1/entries/missing/subtitles.vtt"} {
		resp, err := http.Get(h.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var out api.ErrorResponse
		decodeBody(t, resp, &out)
		if resp.StatusCode != http.StatusNotFound || out.Code != "not_found" {
			t.Fatalf("%s: expected 404 not_found, got %d %+v", path, resp.StatusCode, out)
		}
	}

	resp, err := http.Get(h.server.URL + "/v1/entries/any/subtitles.ass")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestCancelJob(t *testing.T) {
	model := &fixedModel{hold: make(chan struct{})}
	h := newHarness(t, model)
	snap := h.submit(t, "")

	req, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/v1/jobs/"+snap.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if final := h.wait(t, snap.ID); final.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s", final.State)
	}
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	h := newHarness(t, &fixedModel{segments: []transcription.RawSegment{
		{StartMS: 0, EndMS: 400, Text: "one"},
		{StartMS: 400, EndMS: 900, Text: "two"},
	}})
	snap := h.wait(t, h.submit(t, "").ID)

	body := `{"subtitles":[{"index":7,"start_ms":0,"end_ms":900,"text":"one two"}]}`
	req, _ := http.NewRequest(http.MethodPut, h.server.URL+"/v1/entries/"+snap.EntryID+"/subtitles", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	var updated api.EntryResponse
	decodeBody(t, resp, &updated)
	if len(updated.Entry.Subtitles) != 1 || updated.Entry.Subtitles[0].Index != 1 {
		t.Fatalf("expected renumbered single subtitle, got %+v", updated.Entry.Subtitles)
	}

	bad := `{"subtitles":[{"index":1,"start_ms":900,"end_ms":100,"text":"x"}]}`
	req, _ = http.NewRequest(http.MethodPut, h.server.URL+"/v1/entries/"+snap.EntryID+"/subtitles", strings.NewReader(bad))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted cue, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, h.server.URL+"/v1/entries/"+snap.EntryID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if _, err := h.store.Get(context.Background(), snap.EntryID); err == nil {
		t.Fatal("expected entry to be gone")
	}
}

func TestSplitAndTimestamps(t *testing.T) {
	h := newHarness(t, &fixedModel{})

	resp, err := http.Post(h.server.URL+"/v1/subtitles/split", "application/json",
		strings.NewReader(`{"start_ms":0,"end_ms":1000,"text":"hello world"}`))
	if err != nil {
		t.Fatalf("POST split: %v", err)
	}
	var split api.SplitResponse
	decodeBody(t, resp, &split)
	if !split.Split || split.First.Text != "hello" || split.Second.Text != "world" {
		t.Fatalf("unexpected split: %+v", split)
	}
	if split.First.EndMS != split.Second.StartMS {
		t.Fatalf("halves must meet: %+v", split)
	}

	resp, err = http.Post(h.server.URL+"/v1/timestamps/srt", "application/json",
		strings.NewReader(`{"milliseconds":[0,3723004]}`))
	if err != nil {
		t.Fatalf("POST timestamps: %v", err)
	}
	var ts api.TimestampResponse
	decodeBody(t, resp, &ts)
	if len(ts.Timestamps) != 2 || ts.Timestamps[1].SRT != "01:02:03,004" || ts.Timestamps[1].VTT != "01:02:03.004" {
		t.Fatalf("unexpected timestamps: %+v", ts)
	}

	resp, err = http.Post(h.server.URL+"/v1/timestamps/srt", "application/json", strings.NewReader(`{"bogus":1}`))
	if err != nil {
		t.Fatalf("POST timestamps: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestBearerToken(t *testing.T) {
	model := &fixedModel{}
	cfg := testsupport.NewConfig(t, testsupport.WithModelFile(), testsupport.WithChunking(0, 0))
	cfg.Server.Token = "secret"
	loader := func(transcription.Config) (transcription.Model, error) { return model, nil }
	engine, err := transcription.New(transcription.FromSettings(cfg), loader, nil)
	if err != nil {
		t.Fatalf("transcription.New: %v", err)
	}
	defer engine.Close()
	srv := httptest.NewServer(api.New(cfg, jobs.NewManager(cfg, engine, nil, nil), nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/jobs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected open healthz, got %d", resp.StatusCode)
	}
}

func TestJobEventStream(t *testing.T) {
	model := &fixedModel{
		hold: make(chan struct{}),
		segments: []transcription.RawSegment{
			{StartMS: 0, EndMS: 400, Text: "streamed"},
		},
	}
	h := newHarness(t, model)
	snap := h.submit(t, "")

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/v1/jobs/" + snap.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first api.SnapshotMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Job.ID != snap.ID {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	close(model.hold)

	var sawSegment, sawSuccess bool
	for {
		var evt jobs.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("unexpected stream end: %v", err)
			}
			break
		}
		switch evt.Type {
		case jobs.EventSegment:
			sawSegment = evt.Segment != nil && evt.Segment.Text == "streamed"
		case jobs.EventState:
			if evt.State == jobs.StateSucceeded {
				sawSuccess = true
			}
		}
	}
	if !sawSegment || !sawSuccess {
		t.Fatalf("expected segment and success events (segment=%v success=%v)", sawSegment, sawSuccess)
	}
}

func TestLogsEndpointFiltersJob(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	h.hub.Publish(logging.LogEvent{Message: "one", JobID: "a"})
	h.hub.Publish(logging.LogEvent{Message: "two", JobID: "b"})

	resp, err := http.Get(h.server.URL + "/v1/logs?job=b")
	if err != nil {
		t.Fatalf("GET logs: %v", err)
	}
	var out api.LogStreamResponse
	decodeBody(t, resp, &out)
	if len(out.Events) != 1 || out.Events[0].Message != "two" || out.Next != 2 {
		t.Fatalf("unexpected logs: %+v", out)
	}
}

func TestLogsEndpointFiltersComponentAndLevel(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	h.hub.Publish(logging.LogEvent{Message: "debug jobs", Level: "DEBUG", Component: "jobs"})
	h.hub.Publish(logging.LogEvent{Message: "warn jobs", Level: "WARN", Component: "jobs"})
	h.hub.Publish(logging.LogEvent{Message: "error api", Level: "ERROR", Component: "api"})

	resp, err := http.Get(h.server.URL + "/v1/logs?component=jobs&level=info")
	if err != nil {
		t.Fatalf("GET logs: %v", err)
	}
	var out api.LogStreamResponse
	decodeBody(t, resp, &out)
	if len(out.Events) != 1 || out.Events[0].Message != "warn jobs" {
		t.Fatalf("unexpected logs: %+v", out.Events)
	}

	resp, err = http.Get(h.server.URL + "/v1/logs?level=error")
	if err != nil {
		t.Fatalf("GET logs: %v", err)
	}
	decodeBody(t, resp, &out)
	if len(out.Events) != 1 || out.Events[0].Component != "api" {
		t.Fatalf("unexpected logs: %+v", out.Events)
	}
}

func TestServerStartStop(t *testing.T) {
	h := newHarness(t, &fixedModel{})
	srv := api.New(h.cfg, h.manager, h.store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
