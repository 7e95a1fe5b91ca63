package testsupport

import (
	"math"
	"path/filepath"
	"testing"

	"murmur/internal/audio"
)

// Level returns ms milliseconds of 16 kHz samples held at a constant amplitude.
// A constant signal has an RMS equal to its amplitude, which keeps VAD
// expectations exact.
func Level(ms int, amplitude float32) []float32 {
	out := make([]float32, ms*audio.WhisperSampleRate/1000)
	for i := range out {
		out[i] = amplitude
	}
	return out
}

// Silence returns ms milliseconds of 16 kHz zero samples.
func Silence(ms int) []float32 {
	return Level(ms, 0)
}

// Tone returns ms milliseconds of a 16 kHz sine wave at the given frequency.
func Tone(ms int, freq float64, amplitude float32) []float32 {
	out := make([]float32, ms*audio.WhisperSampleRate/1000)
	for i := range out {
		phase := 2 * math.Pi * freq * float64(i) / audio.WhisperSampleRate
		out[i] = amplitude * float32(math.Sin(phase))
	}
	return out
}

// Concat joins sample slices in order.
func Concat(parts ...[]float32) []float32 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]float32, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Mono wraps samples as 16 kHz mono audio.
func Mono(samples ...[]float32) audio.Data {
	return audio.Data{Samples: Concat(samples...), SampleRate: audio.WhisperSampleRate, Channels: 1}
}

// WriteWAV encodes data into dir/name and returns the full path.
func WriteWAV(t testing.TB, dir, name string, data audio.Data) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := audio.WriteWAVFile(path, data); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
	return path
}
