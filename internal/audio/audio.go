package audio

import (
	"errors"
	"fmt"
)

// WhisperSampleRate is the only sample rate accepted by the inference engine,
// the chunker and the trimmer.
const WhisperSampleRate = 16000

var (
	// ErrSampleRate reports audio that is not sampled at WhisperSampleRate.
	ErrSampleRate = errors.New("unsupported sample rate")
	// ErrChannels reports audio that is not mono where mono is required.
	ErrChannels = errors.New("unsupported channel count")
)

// Data is a decoded PCM stream.
type Data struct {
	Samples    []float32
	SampleRate uint32
	Channels   uint16
}

// Frames returns the number of sample frames (samples per channel).
func (d Data) Frames() int {
	if d.Channels <= 1 {
		return len(d.Samples)
	}
	return len(d.Samples) / int(d.Channels)
}

// DurationMS returns the stream duration in whole milliseconds.
func (d Data) DurationMS() uint64 {
	if d.SampleRate == 0 {
		return 0
	}
	return SamplesToMS(d.Frames(), d.SampleRate)
}

// Duration returns the stream duration in seconds.
func (d Data) Duration() float64 {
	if d.SampleRate == 0 {
		return 0
	}
	return float64(d.Frames()) / float64(d.SampleRate)
}

// IsWhisperCompatible reports whether the stream is mono at 16 kHz.
func (d Data) IsWhisperCompatible() bool {
	return d.SampleRate == WhisperSampleRate && d.Channels == 1
}

// RequireWhisperCompatible returns ErrSampleRate or ErrChannels when the
// stream cannot be fed to the engine as is.
func (d Data) RequireWhisperCompatible() error {
	if d.SampleRate != WhisperSampleRate {
		return fmt.Errorf("%w: got %d Hz, expect %d Hz", ErrSampleRate, d.SampleRate, WhisperSampleRate)
	}
	if d.Channels != 1 {
		return fmt.Errorf("%w: got %d channels, expect mono", ErrChannels, d.Channels)
	}
	return nil
}

// ToMono averages interleaved channels into a single channel. Mono input is
// returned unchanged (sharing the sample slice).
func (d Data) ToMono() Data {
	if d.Channels <= 1 {
		return Data{Samples: d.Samples, SampleRate: d.SampleRate, Channels: 1}
	}
	channels := int(d.Channels)
	frames := len(d.Samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += d.Samples[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return Data{Samples: out, SampleRate: d.SampleRate, Channels: 1}
}

// MSToSampleIndex converts milliseconds to a sample index using
// floor(ms * rate / 1000).
func MSToSampleIndex(ms uint64, sampleRate uint32) int {
	return int(ms * uint64(sampleRate) / 1000)
}

// SamplesToMS converts a sample count to milliseconds using
// floor(n * 1000 / rate).
func SamplesToMS(n int, sampleRate uint32) uint64 {
	if sampleRate == 0 || n <= 0 {
		return 0
	}
	return uint64(n) * 1000 / uint64(sampleRate)
}

// Slice returns the mono samples covering [startMS, endMS), clamped to the
// stream. The result is empty when the range collapses.
func Slice(samples []float32, sampleRate uint32, startMS, endMS uint64) []float32 {
	start := MSToSampleIndex(startMS, sampleRate)
	end := min(MSToSampleIndex(endMS, sampleRate), len(samples))
	if start >= end {
		return nil
	}
	return samples[start:end]
}
