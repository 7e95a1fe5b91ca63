package vad

import (
	"context"
	"fmt"

	"murmur/internal/audio"
)

// DefaultTrimFactor scales each window's RMS into the trimmer's VAD threshold.
const DefaultTrimFactor float32 = 0.5

// Status reports how a trim pass ended.
type Status int

const (
	StatusFinished Status = iota
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// TrimSilence tightens each window by removing leading and trailing silence
// detected with an adaptive threshold of RMS(window)*factor. Windows that
// would collapse are returned unchanged. A cancelled context yields
// StatusCancelled with no spans and no error.
func TrimSilence(ctx context.Context, data audio.Data, windows []Span, factor float32, progress func(int)) ([]Span, Status, error) {
	if data.SampleRate != audio.WhisperSampleRate {
		return nil, StatusFinished, fmt.Errorf("trim silence: %w: got %d Hz", audio.ErrSampleRate, data.SampleRate)
	}
	if data.Channels > 1 {
		data = data.ToMono()
	}

	out := make([]Span, 0, len(windows))
	for i, window := range windows {
		if ctx.Err() != nil {
			return nil, StatusCancelled, nil
		}
		out = append(out, trimWindow(data.Samples, data.SampleRate, window, factor))
		if progress != nil {
			progress((i + 1) * 100 / len(windows))
		}
	}
	return out, StatusFinished, nil
}

func trimWindow(samples []float32, sampleRate uint32, window Span, factor float32) Span {
	startIdx := audio.MSToSampleIndex(window.StartMS, sampleRate)
	endIdx := min(audio.MSToSampleIndex(window.EndMS, sampleRate), len(samples))
	if startIdx >= endIdx {
		return window
	}
	slice := samples[startIdx:endIdx]

	detector := New(sampleRate).WithThreshold(RMS(slice) * factor)
	leading := detector.DetectLeadingSilenceMS(slice)
	trailing := detector.DetectTrailingSilenceMS(slice)
	frame := detector.FrameSizeMS

	newStart := window.StartMS
	if leading > frame {
		newStart = window.StartMS + leading - frame
	}

	newEnd := window.EndMS
	if trailing > frame {
		shrink := trailing - frame
		if window.EndMS > window.StartMS {
			shrink = min(shrink, window.EndMS-window.StartMS)
		} else {
			shrink = 0
		}
		newEnd = window.EndMS - shrink
	}

	// The first and last speech frames keep at least one frame between the
	// new bounds, so this guard holds only if the two scans ever disagree.
	if newStart >= newEnd {
		return window
	}
	return Span{StartMS: newStart, EndMS: newEnd}
}
