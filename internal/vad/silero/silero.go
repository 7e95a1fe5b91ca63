//go:build silero

package silero

import (
	"fmt"
	"os"

	"github.com/streamer45/silero-vad-go/speech"
)

// Gate attenuates non-speech regions before inference.
type Gate struct {
	modelPath string
	opts      Options
}

// NewGate validates the model path and returns a gate. Detectors are created
// per Apply call so a Gate is safe for concurrent use.
func NewGate(modelPath string, opts Options) (*Gate, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("silero model: %w", err)
	}
	return &Gate{modelPath: modelPath, opts: opts.withDefaults()}, nil
}

// Apply runs the detector over 16 kHz mono samples and returns the gated copy.
func (g *Gate) Apply(samples []float32) ([]float32, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            g.modelPath,
		SampleRate:           defaultSampleRate,
		Threshold:            g.opts.Threshold,
		MinSilenceDurationMs: g.opts.MinSilenceMS,
		SpeechPadMs:          g.opts.SpeechPadMS,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech detector: %w", err)
	}
	defer detector.Destroy()

	segments, err := detector.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("detect speech: %w", err)
	}
	regions := make([]region, 0, len(segments))
	for _, seg := range segments {
		regions = append(regions, region{startSec: seg.SpeechStartAt, endSec: seg.SpeechEndAt})
	}
	return attenuate(samples, defaultSampleRate, regions, g.opts.Attenuation), nil
}

// Close releases gate resources.
func (g *Gate) Close() error { return nil }
