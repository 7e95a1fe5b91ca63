package transcription

import (
	"sync"
	"sync/atomic"
)

// Observer receives progress and segments while a transcription runs and is
// polled for cancellation. Methods are called synchronously on the
// transcribing goroutine and must not block for long.
type Observer interface {
	OnProgress(percent int)
	OnSegment(Segment)
	ShouldAbort() bool
}

// NopObserver ignores every notification and never aborts.
type NopObserver struct{}

func (NopObserver) OnProgress(int)    {}
func (NopObserver) OnSegment(Segment) {}
func (NopObserver) ShouldAbort() bool { return false }

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	Progress func(int)
	Segment  func(Segment)
	Abort    func() bool
}

func (f ObserverFuncs) OnProgress(percent int) {
	if f.Progress != nil {
		f.Progress(percent)
	}
}

func (f ObserverFuncs) OnSegment(seg Segment) {
	if f.Segment != nil {
		f.Segment(seg)
	}
}

func (f ObserverFuncs) ShouldAbort() bool {
	return f.Abort != nil && f.Abort()
}

// EventKind distinguishes ChannelObserver events.
type EventKind int

const (
	EventProgress EventKind = iota + 1
	EventSegment
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventSegment:
		return "segment"
	default:
		return "unknown"
	}
}

// Event is one notification delivered by a ChannelObserver.
type Event struct {
	Kind     EventKind
	Progress int
	Segment  Segment
}

// ChannelObserver forwards notifications onto a buffered channel so another
// goroutine can consume them. Segment events block until delivered or the
// observer is aborted; progress events are dropped when the buffer is full.
type ChannelObserver struct {
	events    chan Event
	done      chan struct{}
	aborted   atomic.Bool
	abortOnce sync.Once
	closeOnce sync.Once
}

// NewChannelObserver allocates an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events returns the receive side of the event stream. It is closed by Close.
func (o *ChannelObserver) Events() <-chan Event {
	return o.events
}

func (o *ChannelObserver) OnProgress(percent int) {
	select {
	case o.events <- Event{Kind: EventProgress, Progress: percent}:
	default:
	}
}

func (o *ChannelObserver) OnSegment(seg Segment) {
	select {
	case o.events <- Event{Kind: EventSegment, Segment: seg}:
	case <-o.done:
	}
}

func (o *ChannelObserver) ShouldAbort() bool {
	return o.aborted.Load()
}

// Abort requests cancellation and releases any blocked sender.
func (o *ChannelObserver) Abort() {
	o.abortOnce.Do(func() {
		o.aborted.Store(true)
		close(o.done)
	})
}

// Close ends the event stream. Only the producing goroutine may call it, after
// the transcription call has returned.
func (o *ChannelObserver) Close() {
	o.closeOnce.Do(func() {
		close(o.events)
	})
}
