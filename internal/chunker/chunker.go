package chunker

import (
	"log/slog"

	"murmur/internal/audio"
	"murmur/internal/logging"
	"murmur/internal/vad"
)

// Chunking defaults.
const (
	DefaultChunkLengthMS uint64 = 60000
	DefaultOverlapMS     uint64 = 1000
	DefaultMaxSearchMS   uint64 = 30000
	DefaultMinSilenceMS  uint64 = 500

	searchFrameSizeMS  uint64  = 200
	searchFrameShiftMS uint64  = 100
	searchRMSFactor    float32 = 0.5
)

// Options control chunk sizing. Zero ChunkLengthMS, MaxSearchMS and
// MinSilenceMS select the defaults; a zero OverlapMS disables overlap.
type Options struct {
	ChunkLengthMS uint64
	OverlapMS     uint64
	MaxSearchMS   uint64
	MinSilenceMS  uint64
}

// DefaultOptions returns 60 s chunks with 1 s overlap.
func DefaultOptions() Options {
	return Options{
		ChunkLengthMS: DefaultChunkLengthMS,
		OverlapMS:     DefaultOverlapMS,
		MaxSearchMS:   DefaultMaxSearchMS,
		MinSilenceMS:  DefaultMinSilenceMS,
	}
}

func (o Options) normalize(logger *slog.Logger) Options {
	if o.ChunkLengthMS == 0 {
		o.ChunkLengthMS = DefaultChunkLengthMS
	}
	if o.MaxSearchMS == 0 {
		o.MaxSearchMS = DefaultMaxSearchMS
	}
	if o.MinSilenceMS == 0 {
		o.MinSilenceMS = DefaultMinSilenceMS
	}
	// Overlap may not exceed half a chunk or forced boundaries stop advancing.
	if o.OverlapMS > o.ChunkLengthMS/2 {
		logger.Debug("overlap capped at half a chunk",
			logging.Millis("requested_overlap", o.OverlapMS),
			logging.Millis("overlap", o.ChunkLengthMS/2),
			logging.Millis("chunk_length", o.ChunkLengthMS),
		)
		o.OverlapMS = o.ChunkLengthMS / 2
	}
	return o
}

// Chunk is one contiguous slice of the source samples.
type Chunk struct {
	Samples        []float32
	StartOffsetMS  uint64
	SilenceAligned bool
}

// EndOffsetMS returns the chunk end on the source timeline.
func (c Chunk) EndOffsetMS(sampleRate uint32) uint64 {
	return c.StartOffsetMS + audio.SamplesToMS(len(c.Samples), sampleRate)
}

// Split partitions mono samples into chunks. The returned chunks share the
// backing array of data.Samples.
func Split(data audio.Data, opts Options, logger *slog.Logger) []Chunk {
	logger = logging.NewComponentLogger(logger, "chunker")
	opts = opts.normalize(logger)
	samples := data.Samples
	rate := data.SampleRate
	total := len(samples)
	if total == 0 {
		return nil
	}

	if data.DurationMS() <= opts.ChunkLengthMS {
		logger.Debug("audio fits in a single chunk",
			logging.Uint64("duration_ms", data.DurationMS()),
			logging.Uint64("chunk_length_ms", opts.ChunkLengthMS),
		)
		return []Chunk{{Samples: samples[:total:total], StartOffsetMS: 0}}
	}

	chunkSamples := max(audio.MSToSampleIndex(opts.ChunkLengthMS, rate), 1)
	overlapSamples := audio.MSToSampleIndex(opts.OverlapMS, rate)

	var chunks []Chunk
	current := 0
	for current < total {
		ideal := min(current+chunkSamples, total)
		end, aligned := ideal, false
		if ideal < total {
			end, aligned = findSilenceSplit(samples, ideal, rate, opts, logger)
		}

		chunks = append(chunks, Chunk{
			Samples:        samples[current:end:end],
			StartOffsetMS:  audio.SamplesToMS(current, rate),
			SilenceAligned: aligned,
		})
		logger.Debug("chunk created",
			logging.Int("chunk_index", len(chunks)-1),
			logging.Uint64("start_ms", audio.SamplesToMS(current, rate)),
			logging.Uint64("end_ms", audio.SamplesToMS(end, rate)),
			logging.Bool("silence_aligned", aligned),
		)

		// Stop once the stream end is covered.
		if end >= total {
			break
		}
		next := end
		if !aligned {
			next = max(end-overlapSamples, 0)
		}
		if next <= current {
			next = end
		}
		current = next
	}

	logger.Debug("audio split into chunks", logging.Int("chunk_count", len(chunks)))
	return chunks
}

// findSilenceSplit scans [target, target+MaxSearchMS) for the first silence
// run of at least MinSilenceMS that is followed by speech and returns the
// middle of that run. Without one it returns target, false.
func findSilenceSplit(samples []float32, target int, rate uint32, opts Options, logger *slog.Logger) (int, bool) {
	searchEnd := min(target+audio.MSToSampleIndex(opts.MaxSearchMS, rate), len(samples))
	window := samples[target:searchEnd]
	if len(window) == 0 {
		return target, false
	}

	detector := vad.New(rate).
		WithThreshold(vad.RMS(window) * searchRMSFactor).
		WithFrameSizeMS(searchFrameSizeMS).
		WithFrameShiftMS(searchFrameShiftMS)
	frameSize := max(audio.MSToSampleIndex(searchFrameSizeMS, rate), 1)
	frameShift := max(audio.MSToSampleIndex(searchFrameShiftMS, rate), 1)
	minSilence := audio.MSToSampleIndex(opts.MinSilenceMS, rate)

	silenceStart := -1
	for offset := 0; offset < len(window); offset += frameShift {
		frame := window[offset:min(offset+frameSize, len(window))]
		if !detector.ContainsSpeech(frame) {
			if silenceStart < 0 {
				silenceStart = offset
			}
			continue
		}
		if silenceStart >= 0 {
			run := offset - silenceStart
			if run >= minSilence {
				split := min(target+silenceStart+run/2, len(samples))
				logger.Debug("silence split point found",
					logging.Uint64("split_ms", audio.SamplesToMS(split, rate)),
					logging.Uint64("silence_ms", audio.SamplesToMS(run, rate)),
				)
				return split, true
			}
		}
		silenceStart = -1
	}
	return target, false
}
