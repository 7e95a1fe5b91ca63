package jobs

import (
	"context"
	"sync"
	"time"

	"murmur/internal/transcription"
)

// State is the lifecycle position of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the job has finished.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// EventType distinguishes job events.
type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventSegment  EventType = "segment"
)

// Event is a job notification delivered to subscribers.
type Event struct {
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id"`
	State     State                  `json:"state,omitempty"`
	Progress  int                    `json:"progress,omitempty"`
	Segment   *transcription.Segment `json:"segment,omitempty"`
	EntryID   string                 `json:"entry_id,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorCode string                 `json:"error_code,omitempty"`
}

// Snapshot is a point-in-time view of a job.
type Snapshot struct {
	ID         string     `json:"id"`
	Source     string     `json:"source,omitempty"`
	Language   string     `json:"language,omitempty"`
	State      State      `json:"state"`
	Progress   int        `json:"progress"`
	Segments   int        `json:"segments"`
	DurationMS uint64     `json:"duration_ms"`
	EntryID    string     `json:"entry_id,omitempty"`
	Cached     bool       `json:"cached,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorCode  string     `json:"error_code,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job is one submitted transcription.
type Job struct {
	id  string
	req Request

	mu         sync.Mutex
	state      State
	progress   int
	segments   []transcription.Segment
	result     *transcription.Result
	entryID    string
	cached     bool
	err        error
	errorCode  string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	observer   *transcription.ChannelObserver
	subs       map[int]chan Event
	nextSub    int
	bufferSize int

	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(id string, req Request, buffer int, cancel context.CancelFunc) *Job {
	if buffer < 1 {
		buffer = 1
	}
	return &Job{
		id:         id,
		req:        req,
		state:      StateQueued,
		createdAt:  time.Now().UTC(),
		subs:       make(map[int]chan Event),
		bufferSize: buffer,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-j.done:
		return j.Snapshot(), nil
	case <-ctx.Done():
		return j.Snapshot(), ctx.Err()
	}
}

// Result returns the transcription once the job has succeeded.
func (j *Job) Result() *transcription.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Segments returns the segments streamed so far.
func (j *Job) Segments() []transcription.Segment {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]transcription.Segment(nil), j.segments...)
}

// Err returns the failure cause of a failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Snapshot returns the current job view.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         j.id,
		Source:     j.req.Source,
		Language:   j.req.Language,
		State:      j.state,
		Progress:   j.progress,
		Segments:   len(j.segments),
		DurationMS: j.req.Data.DurationMS(),
		EntryID:    j.entryID,
		Cached:     j.cached,
		ErrorCode:  j.errorCode,
		CreatedAt:  j.createdAt,
	}
	if j.err != nil {
		snap.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		snap.StartedAt = &started
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// Subscribe returns the current snapshot and a channel of subsequent events.
// The channel closes when the job finishes, when the subscriber falls too far
// behind, or when the returned cancel function is called. Progress events are
// dropped rather than delayed.
func (j *Job) Subscribe() (Snapshot, <-chan Event, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan Event, j.bufferSize)
	snap := j.snapshotLocked()
	if j.state.Terminal() {
		close(ch)
		return snap, ch, func() {}
	}
	id := j.nextSub
	j.nextSub++
	j.subs[id] = ch
	var once sync.Once
	return snap, ch, func() {
		once.Do(func() {
			j.mu.Lock()
			defer j.mu.Unlock()
			if sub, ok := j.subs[id]; ok {
				delete(j.subs, id)
				close(sub)
			}
		})
	}
}

// abort cancels the job context and any running engine call.
func (j *Job) abort() {
	j.cancel()
	j.mu.Lock()
	obs := j.observer
	j.mu.Unlock()
	if obs != nil {
		obs.Abort()
	}
}

func (j *Job) attach(obs *transcription.ChannelObserver) {
	j.mu.Lock()
	j.observer = obs
	j.mu.Unlock()
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateRunning
	j.startedAt = time.Now().UTC()
	j.broadcastLocked(Event{Type: EventState, State: StateRunning})
}

func (j *Job) setProgress(percent int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if percent <= j.progress {
		return
	}
	j.progress = percent
	j.broadcastLocked(Event{Type: EventProgress, Progress: percent})
}

func (j *Job) addSegment(seg transcription.Segment) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments = append(j.segments, seg)
	j.broadcastLocked(Event{Type: EventSegment, Segment: &seg})
}

// finish records the terminal state, notifies subscribers and closes their
// channels. Only the first call has any effect.
func (j *Job) finish(state State, result *transcription.Result, entryID string, cached bool, err error, code string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = state
	j.result = result
	j.entryID = entryID
	j.cached = cached
	j.err = err
	j.errorCode = code
	j.finishedAt = time.Now().UTC()
	if state == StateSucceeded {
		j.progress = 100
	}
	evt := Event{Type: EventState, State: state, EntryID: entryID, ErrorCode: code}
	if err != nil {
		evt.Error = err.Error()
	}
	j.broadcastLocked(evt)
	for id, ch := range j.subs {
		close(ch)
		delete(j.subs, id)
	}
	close(j.done)
}

func (j *Job) broadcastLocked(evt Event) {
	evt.JobID = j.id
	for id, ch := range j.subs {
		select {
		case ch <- evt:
		default:
			if evt.Type == EventProgress {
				continue
			}
			// A subscriber that cannot take a segment or state change has
			// lost the stream; close it so the reader notices.
			close(ch)
			delete(j.subs, id)
		}
	}
}
