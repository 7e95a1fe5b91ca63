package vad

import (
	"math"

	"murmur/internal/audio"
)

// Detector defaults.
const (
	DefaultThreshold    float32 = 0.1
	DefaultFrameSizeMS  uint64  = 200
	DefaultFrameShiftMS uint64  = 100
)

// Span is a [StartMS, EndMS) range on the audio timeline.
type Span struct {
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
}

// EnergyVAD is an RMS-threshold speech classifier over sliding frames.
type EnergyVAD struct {
	Threshold    float32
	SampleRate   uint32
	FrameSizeMS  uint64
	FrameShiftMS uint64
}

// New returns a detector with the default threshold and 200/100 ms framing.
func New(sampleRate uint32) EnergyVAD {
	return EnergyVAD{
		Threshold:    DefaultThreshold,
		SampleRate:   sampleRate,
		FrameSizeMS:  DefaultFrameSizeMS,
		FrameShiftMS: DefaultFrameShiftMS,
	}
}

func (v EnergyVAD) WithThreshold(threshold float32) EnergyVAD {
	v.Threshold = threshold
	return v
}

func (v EnergyVAD) WithFrameSizeMS(ms uint64) EnergyVAD {
	v.FrameSizeMS = ms
	return v
}

func (v EnergyVAD) WithFrameShiftMS(ms uint64) EnergyVAD {
	v.FrameShiftMS = ms
	return v
}

// RMS returns sqrt(mean(s²)), or 0 for an empty slice.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// ContainsSpeech reports whether the frame's RMS exceeds the threshold.
func (v EnergyVAD) ContainsSpeech(frame []float32) bool {
	if len(frame) == 0 {
		return false
	}
	return RMS(frame) > v.Threshold
}

// frameSamples returns frame size and hop in samples. The hop is at least one
// sample so scans always terminate.
func (v EnergyVAD) frameSamples() (size, shift int) {
	size = audio.MSToSampleIndex(v.FrameSizeMS, v.SampleRate)
	shift = audio.MSToSampleIndex(v.FrameShiftMS, v.SampleRate)
	return max(size, 1), max(shift, 1)
}

func (v EnergyVAD) frame(samples []float32, offset, size int) []float32 {
	end := min(offset+size, len(samples))
	if offset >= end {
		return nil
	}
	return samples[offset:end]
}

// DetectActiveSegments returns the speech spans found by sliding the frame
// window across samples.
func (v EnergyVAD) DetectActiveSegments(samples []float32) []Span {
	if len(samples) == 0 {
		return nil
	}
	size, shift := v.frameSamples()
	totalMS := audio.SamplesToMS(len(samples), v.SampleRate)

	var (
		segments []Span
		startMS  uint64
		endMS    uint64
		active   bool
	)
	for index, offset := 0, 0; offset < len(samples); index, offset = index+1, offset+shift {
		frame := v.frame(samples, offset, size)
		if frame == nil {
			break
		}
		if v.ContainsSpeech(frame) {
			if !active {
				active = true
				startMS = uint64(index) * v.FrameShiftMS
				endMS = startMS
			}
			endMS += v.FrameShiftMS
			continue
		}
		if active {
			active = false
			segments = append(segments, Span{StartMS: startMS, EndMS: endMS})
		}
	}
	if active {
		// An open run always closes at the end of the input.
		segments = append(segments, Span{StartMS: startMS, EndMS: totalMS})
	}
	return segments
}

// DetectLeadingSilenceMS returns the offset of the first speech frame, or 0
// when the first frame is speech or no speech is found.
func (v EnergyVAD) DetectLeadingSilenceMS(samples []float32) uint64 {
	size, shift := v.frameSamples()
	for index, offset := 0, 0; offset < len(samples); index, offset = index+1, offset+shift {
		frame := v.frame(samples, offset, size)
		if frame == nil {
			return 0
		}
		if v.ContainsSpeech(frame) {
			return uint64(index) * v.FrameShiftMS
		}
	}
	return 0
}

// DetectTrailingSilenceMS returns the silence after the last speech frame,
// counted as the silent hops plus one frame width. It is 0 when the last
// frame is speech or no speech is found.
func (v EnergyVAD) DetectTrailingSilenceMS(samples []float32) uint64 {
	size, shift := v.frameSamples()
	totalFrames := trailingFrameCount(len(samples), size, shift)
	for index := totalFrames - 1; index >= 0; index-- {
		frame := v.frame(samples, index*shift, size)
		if frame == nil {
			continue
		}
		if !v.ContainsSpeech(frame) {
			continue
		}
		if index == totalFrames-1 {
			return 0
		}
		silentFrames := uint64(totalFrames - index - 1)
		return silentFrames*v.FrameShiftMS + v.FrameSizeMS
	}
	return 0
}

// trailingFrameCount is ceil((n - size + shift) / shift), with a single frame
// for input shorter than one frame.
func trailingFrameCount(n, size, shift int) int {
	if n <= 0 {
		return 0
	}
	if n < size {
		return 1
	}
	span := n - size + shift
	return (span + shift - 1) / shift
}
