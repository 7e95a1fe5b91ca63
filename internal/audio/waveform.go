package audio

import "math"

// Window is a [StartMS, EndMS) time range.
type Window struct {
	StartMS uint64
	EndMS   uint64
}

// Waveform returns one preview per window. Windows longer than maxSamples
// are downsampled by averaging equal blocks; empty windows yield nil entries.
func Waveform(data Data, windows []Window, maxSamples int) [][]float32 {
	mono := data.ToMono()
	out := make([][]float32, 0, len(windows))
	for _, w := range windows {
		segment := Slice(mono.Samples, mono.SampleRate, w.StartMS, w.EndMS)
		if len(segment) == 0 {
			out = append(out, nil)
			continue
		}
		if maxSamples <= 0 || len(segment) <= maxSamples {
			cp := make([]float32, len(segment))
			copy(cp, segment)
			out = append(out, cp)
			continue
		}
		block := int(math.Ceil(float64(len(segment)) / float64(maxSamples)))
		preview := make([]float32, 0, maxSamples)
		for i := 0; i < len(segment); i += block {
			end := min(i+block, len(segment))
			var sum float32
			for _, s := range segment[i:end] {
				sum += s
			}
			preview = append(preview, sum/float32(end-i))
		}
		out = append(out, preview)
	}
	return out
}
