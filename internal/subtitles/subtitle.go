package subtitles

import (
	"errors"
	"fmt"

	"murmur/internal/transcription"
)

// ErrIndexOutOfRange reports an editing operation on a missing subtitle.
var ErrIndexOutOfRange = errors.New("subtitle index out of range")

// Subtitle is one cue on the audio timeline. Index is 1-based.
type Subtitle struct {
	Index   int    `json:"index"`
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
	Text    string `json:"text"`
}

// DurationMS returns the cue length in milliseconds, 0 for inverted cues.
func (s Subtitle) DurationMS() uint64 {
	if s.EndMS < s.StartMS {
		return 0
	}
	return s.EndMS - s.StartMS
}

// List is an ordered subtitle track.
type List []Subtitle

// FromResult converts transcription segments into subtitles, keeping their indices.
func FromResult(result transcription.Result) List {
	out := make(List, 0, len(result.Segments))
	for _, seg := range result.Segments {
		out = append(out, Subtitle{
			Index:   seg.Index,
			StartMS: seg.StartMS,
			EndMS:   seg.EndMS,
			Text:    seg.Text,
		})
	}
	return out
}

// Renumber returns a copy with indices 1..n in list order.
func (l List) Renumber() List {
	out := l.clone()
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// EndMS reports the latest cue end.
func (l List) EndMS() uint64 {
	var last uint64
	for _, sub := range l {
		if sub.EndMS > last {
			last = sub.EndMS
		}
	}
	return last
}

func (l List) clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

func (l List) check(i int) error {
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l))
	}
	return nil
}
