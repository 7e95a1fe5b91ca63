package transcription

import (
	"strings"
	"time"
)

// Segment is one transcribed utterance on the source timeline. Index is
// 1-based and contiguous across a result.
type Segment struct {
	Index      int     `json:"index"`
	StartMS    uint64  `json:"start_ms"`
	EndMS      uint64  `json:"end_ms"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// Result is a complete transcription. Segments are ordered by non-decreasing StartMS.
type Result struct {
	Text            string    `json:"text"`
	Language        string    `json:"language,omitempty"`
	Segments        []Segment `json:"segments"`
	ProcessingMS    uint64    `json:"processing_ms"`
	AudioDurationMS uint64    `json:"audio_duration_ms"`
}

// RealTimeFactor is processing time divided by audio duration; 0 for empty audio.
func (r Result) RealTimeFactor() float64 {
	if r.AudioDurationMS == 0 {
		return 0
	}
	return float64(r.ProcessingMS) / float64(r.AudioDurationMS)
}

// AverageConfidence is the mean segment confidence; 0 without segments.
func (r Result) AverageConfidence() float32 {
	if len(r.Segments) == 0 {
		return 0
	}
	var total float32
	for _, seg := range r.Segments {
		total += seg.Confidence
	}
	return total / float32(len(r.Segments))
}

// FilterByConfidence keeps segments scoring at least min and rebuilds the text.
// Segment indices are left as they were.
func (r Result) FilterByConfidence(min float32) Result {
	kept := make([]Segment, 0, len(r.Segments))
	texts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if seg.Confidence >= min {
			kept = append(kept, seg)
			texts = append(texts, seg.Text)
		}
	}
	out := r
	out.Segments = kept
	out.Text = strings.Join(texts, " ")
	return out
}

// ProcessingTime returns ProcessingMS as a duration.
func (r Result) ProcessingTime() time.Duration {
	return time.Duration(r.ProcessingMS) * time.Millisecond
}

// AudioDuration returns AudioDurationMS as a duration.
func (r Result) AudioDuration() time.Duration {
	return time.Duration(r.AudioDurationMS) * time.Millisecond
}
