package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultHubCapacity = 512

// LogEvent is one log record as served by /v1/logs.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         string            `json:"job_id,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StreamHub keeps the most recent events in memory. Readers poll with Fetch
// and may block until the next Publish.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	events   []LogEvent
	lastSeq  uint64
	// changed is closed and replaced on every Publish.
	changed chan struct{}
}

// NewStreamHub returns a hub holding up to capacity events (512 when <= 0).
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	return &StreamHub{
		capacity: capacity,
		events:   make([]LogEvent, 0, capacity),
		changed:  make(chan struct{}),
	}
}

// Publish assigns the next sequence number to evt and buffers it, evicting
// the oldest event when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSeq++
	evt.Sequence = h.lastSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.events) == h.capacity {
		h.events = append(h.events[:0], h.events[1:]...)
	}
	h.events = append(h.events, evt)

	close(h.changed)
	h.changed = make(chan struct{})
}

// Fetch returns up to limit events newer than since, plus the latest sequence
// number. With wait it blocks until such an event exists or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	limit = h.clampLimit(limit)

	for {
		h.mu.Lock()
		events := h.after(since, limit)
		last, changed := h.lastSeq, h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	limit = h.clampLimit(limit)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return nil, h.lastSeq
	}
	start := max(len(h.events)-limit, 0)
	return append([]LogEvent(nil), h.events[start:]...), h.lastSeq
}

// FirstSequence reports the oldest buffered sequence number, or the latest
// one when the buffer is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return h.lastSeq
	}
	return h.events[0].Sequence
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > h.capacity {
		return h.capacity
	}
	return limit
}

// after copies events with Sequence > since. Sequences are contiguous, so the
// start index follows from the first buffered sequence.
func (h *StreamHub) after(since uint64, limit int) []LogEvent {
	if len(h.events) == 0 || since >= h.lastSeq {
		return nil
	}
	start := 0
	if first := h.events[0].Sequence; since >= first {
		start = int(since - first + 1)
	}
	end := min(start+limit, len(h.events))
	return append([]LogEvent(nil), h.events[start:end]...)
}

// streamHandler publishes every handled record to a hub before passing it on.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.attrs))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}

// FilterJob keeps only events tagged with jobID. An empty jobID keeps everything.
func FilterJob(events []LogEvent, jobID string) []LogEvent {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return events
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		if evt.JobID == jobID {
			out = append(out, evt)
		}
	}
	return out
}

// eventFromRecord builds a LogEvent from logger attrs followed by call-site
// attrs, so the latter win. Details come from call-site attrs only.
func eventFromRecord(record slog.Record, loggerAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
		Fields:    make(map[string]string),
	}
	apply := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		value := attrString(attr.Value)
		switch key {
		case "":
		case FieldJobID:
			event.JobID = value
		case FieldStage:
			event.Stage = value
		case FieldCorrelationID:
			event.CorrelationID = value
		case FieldComponent:
			event.Component = value
		default:
			event.Fields[key] = value
		}
	}
	for _, attr := range loggerAttrs {
		apply(attr)
	}

	var callSite []kv
	record.Attrs(func(attr slog.Attr) bool {
		apply(attr)
		if key := strings.TrimSpace(attr.Key); key != "" {
			callSite = append(callSite, kv{key: key, value: attr.Value})
		}
		return true
	})
	info, _ := selectInfoFields(callSite, infoAttrLimit, false)
	for _, field := range info {
		event.Details = append(event.Details, DetailField{Label: field.label, Value: field.value})
	}
	return event
}
