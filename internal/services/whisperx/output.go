package whisperx

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"murmur/internal/transcription"
)

// Word represents a single word with timing from WhisperX output. Score is
// absent for words the aligner could not place.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// Payload is the JSON document whisperx writes per input file.
type Payload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// LoadPayload loads a WhisperX JSON file.
func LoadPayload(jsonPath string) (Payload, error) {
	var payload Payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

// RawSegments converts the payload into engine segments. Scored words become
// readable tokens; unscored words, or a segment without word output, become
// unreadable tokens so the engine applies its confidence fallback.
func (p Payload) RawSegments() []transcription.RawSegment {
	out := make([]transcription.RawSegment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		raw := transcription.RawSegment{
			StartMS: secondsToMS(seg.Start),
			EndMS:   secondsToMS(seg.End),
			Text:    seg.Text,
		}
		if raw.EndMS < raw.StartMS {
			raw.EndMS = raw.StartMS
		}
		if len(seg.Words) == 0 {
			if text := strings.TrimSpace(seg.Text); text != "" {
				raw.Tokens = []transcription.Token{{Text: text}}
			}
		}
		for _, word := range seg.Words {
			tok := transcription.Token{Text: strings.TrimSpace(word.Word)}
			if word.Score != nil {
				tok.Readable = true
				tok.Probability = float32(math.Min(1, math.Max(0, *word.Score)))
			}
			raw.Tokens = append(raw.Tokens, tok)
		}
		out = append(out, raw)
	}
	return out
}

func secondsToMS(v float64) uint64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint64(math.Round(v * 1000))
}
