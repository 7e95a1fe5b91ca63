package vad

import (
	"time"

	"murmur/internal/audio"
)

// EstimateRMS returns the RMS over the first limit of the stream, downmixing
// first when needed. A non-positive limit measures the whole stream.
func EstimateRMS(data audio.Data, limit time.Duration) float32 {
	if data.Channels > 1 {
		data = data.ToMono()
	}
	samples := data.Samples
	if limit > 0 {
		maxSamples := audio.MSToSampleIndex(uint64(limit.Milliseconds()), data.SampleRate)
		if len(samples) > maxSamples {
			samples = samples[:maxSamples]
		}
	}
	return RMS(samples)
}
