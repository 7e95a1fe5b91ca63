// Package silero gates inference input with an external Silero VAD model.
//
// The detector needs onnxruntime through cgo, so the real implementation is
// only compiled with the "silero" build tag. Default builds get a stub whose
// constructor returns ErrUnsupported.
package silero

import (
	"errors"

	"murmur/internal/audio"
)

// ErrUnsupported is returned when the binary was built without silero support.
var ErrUnsupported = errors.New("silero vad support not compiled in (build with -tags silero)")

// Gate defaults.
const (
	DefaultThreshold       float32 = 0.5
	DefaultMinSilenceMS            = 300
	DefaultSpeechPadMS             = 200
	DefaultAttenuation     float32 = 0.1
	defaultSampleRate              = audio.WhisperSampleRate
	attenuationRampSamples         = 160
)

// Options tune the external detector.
type Options struct {
	Threshold    float32
	MinSilenceMS int
	SpeechPadMS  int
	// Attenuation is the gain applied to samples outside detected speech.
	Attenuation float32
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MinSilenceMS <= 0 {
		o.MinSilenceMS = DefaultMinSilenceMS
	}
	if o.SpeechPadMS <= 0 {
		o.SpeechPadMS = DefaultSpeechPadMS
	}
	if o.Attenuation <= 0 || o.Attenuation > 1 {
		o.Attenuation = DefaultAttenuation
	}
	return o
}

// region is a detected speech range in seconds. An end of zero means the
// speech ran to the end of the input.
type region struct {
	startSec float64
	endSec   float64
}

// attenuate returns a copy of samples where everything outside regions is
// scaled by gain, ramping linearly near speech edges. With no regions the
// input is returned unchanged.
func attenuate(samples []float32, sampleRate int, regions []region, gain float32) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)
	if len(regions) == 0 || len(samples) == 0 {
		return out
	}

	speech := make([]bool, len(samples))
	for _, r := range regions {
		start := max(int(r.startSec*float64(sampleRate)), 0)
		end := int(r.endSec * float64(sampleRate))
		if end <= 0 || end > len(samples) {
			end = len(samples)
		}
		for i := start; i < end; i++ {
			speech[i] = true
		}
	}

	for i := range out {
		if speech[i] {
			continue
		}
		distance := distanceToSpeech(speech, i, attenuationRampSamples)
		if distance >= attenuationRampSamples {
			out[i] *= gain
			continue
		}
		ramp := float32(distance) / float32(attenuationRampSamples)
		out[i] *= 1 - (1-gain)*ramp
	}
	return out
}

func distanceToSpeech(speech []bool, i, limit int) int {
	for d := 1; d < limit; d++ {
		if i-d >= 0 && speech[i-d] {
			return d
		}
		if i+d < len(speech) && speech[i+d] {
			return d
		}
	}
	return limit
}
