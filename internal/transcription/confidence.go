package transcription

import "strings"

// segmentConfidence averages readable token probabilities. A segment without
// tokens scores 0; one whose tokens are all unreadable scores fallback.
func segmentConfidence(tokens []Token, fallback float32) float32 {
	if len(tokens) == 0 {
		return 0
	}
	var total float32
	readable := 0
	for _, tok := range tokens {
		if !tok.Readable {
			continue
		}
		total += tok.Probability
		readable++
	}
	if readable == 0 {
		return fallback
	}
	return clampUnit(total / float32(readable))
}

// segmentBuilder numbers kept segments and joins their text.
type segmentBuilder struct {
	fallback float32
	next     int
	segments []Segment
	texts    []string
}

func newSegmentBuilder(fallback float32, firstIndex int) *segmentBuilder {
	return &segmentBuilder{fallback: fallback, next: firstIndex}
}

// add converts raw and appends it, reporting false for empty text. Starts
// never move backwards relative to the previous kept segment.
func (b *segmentBuilder) add(raw RawSegment, offsetMS uint64) (Segment, bool) {
	seg, ok := b.convert(raw, offsetMS)
	if !ok {
		return Segment{}, false
	}
	if n := len(b.segments); n > 0 && seg.StartMS < b.segments[n-1].StartMS {
		seg.StartMS = b.segments[n-1].StartMS
		if seg.EndMS < seg.StartMS {
			seg.EndMS = seg.StartMS
		}
	}
	b.next++
	b.segments = append(b.segments, seg)
	b.texts = append(b.texts, seg.Text)
	return seg, true
}

func (b *segmentBuilder) convert(raw RawSegment, offsetMS uint64) (Segment, bool) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return Segment{}, false
	}
	start := raw.StartMS + offsetMS
	end := raw.EndMS + offsetMS
	if end < start {
		end = start
	}
	return Segment{
		Index:      b.next,
		StartMS:    start,
		EndMS:      end,
		Text:       text,
		Confidence: segmentConfidence(raw.Tokens, b.fallback),
	}, true
}

func (b *segmentBuilder) text() string {
	return strings.Join(b.texts, " ")
}
