package subtitles

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"murmur/internal/logging"
)

// Removal reasons reported by FilterHallucinations.
const (
	ReasonAdvertisement = "advertisement"
	ReasonIsolated      = "isolated_hallucination"
	ReasonRepeated      = "repeated_hallucination"
	ReasonMusic         = "music_symbols"
	ReasonTrailing      = "trailing_hallucination"
	ReasonTrailingMusic = "trailing_music"
)

const (
	isolationGapMS = 30_000
	repeatGapMS    = 10_000
	trailingWindow = 300_000
	minRepeatedRun = 3
	unboundedGapMS = ^uint64(0)
)

// Known hallucination phrases (normalized form). Whisper models emit these
// over silence and music.
var hallucinationPhrases = map[string]bool{
	"thank you":              true,
	"thank you for watching": true,
	"thanks for watching":    true,
	"please subscribe":       true,
	"like and subscribe":     true,
	"well be right back":     true,
	"bye":                    true,
	"bye bye":                true,
	"see you next time":      true,
	"see you later":          true,
}

// Credit lines learned from subtitle sites show up verbatim in model output.
var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)amara\.org`),
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
}

var textNormalizeRe = regexp.MustCompile(`[^a-z0-9\s]`)

// Removal records a single cue removed by FilterHallucinations.
type Removal struct {
	Subtitle Subtitle
	Reason   string
}

// FilterResult holds the surviving cues and a log of everything removed.
type FilterResult struct {
	Kept     List
	Removals []Removal
}

// FilterHallucinations removes model artifacts from a transcribed track. It
// drops credit and advertisement lines anywhere, known phrases and music-only
// cues when isolated by long gaps, runs of three or more identical cues spaced
// more than ten seconds apart, and known phrases or music in the last five
// minutes of long recordings. The result is renumbered.
func FilterHallucinations(list List, durationMS uint64) FilterResult {
	var removals []Removal

	remaining := make(List, 0, len(list))
	for _, sub := range list {
		if isAdvertisement(sub.Text) {
			removals = append(removals, Removal{Subtitle: sub, Reason: ReasonAdvertisement})
			continue
		}
		remaining = append(remaining, sub)
	}

	remaining, isolated := removeIsolatedHallucinations(remaining)
	removals = append(removals, isolated...)

	remaining, trailing := sweepTrailingHallucinations(remaining, durationMS)
	removals = append(removals, trailing...)

	return FilterResult{Kept: remaining.Renumber(), Removals: removals}
}

// LogFilterSummary logs removal counts at INFO and each removal at DEBUG.
func LogFilterSummary(logger *slog.Logger, result FilterResult) {
	if logger == nil || len(result.Removals) == 0 {
		return
	}
	reasons := make(map[string]int)
	for _, r := range result.Removals {
		reasons[r.Reason]++
	}
	attrs := []slog.Attr{
		logging.String(logging.FieldEventType, "hallucination_filter_applied"),
		logging.Int("cues_removed", len(result.Removals)),
		logging.Int("cues_remaining", len(result.Kept)),
	}
	for reason, count := range reasons {
		attrs = append(attrs, logging.Int("removed_"+reason, count))
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "hallucination filter applied", attrs...)

	for _, r := range result.Removals {
		logger.Debug("hallucination filter removed cue",
			logging.Int("cue_index", r.Subtitle.Index),
			logging.String("cue_text", r.Subtitle.Text),
			logging.String("reason", r.Reason),
			logging.Uint64("start_ms", r.Subtitle.StartMS),
			logging.Uint64("end_ms", r.Subtitle.EndMS),
		)
	}
}

func isAdvertisement(text string) bool {
	payload := strings.TrimSpace(text)
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

func removeIsolatedHallucinations(list List) (List, []Removal) {
	if len(list) == 0 {
		return list, nil
	}
	remove := make([]bool, len(list))
	var removals []Removal

	markRepeatedHallucinations(list, remove, &removals)

	for i := range list {
		if remove[i] {
			continue
		}
		isolated := gapToPrevious(list, i) >= isolationGapMS && gapToNext(list, i) >= isolationGapMS
		if !isolated {
			continue
		}
		if hallucinationPhrases[normalizeText(list[i].Text)] {
			remove[i] = true
			removals = append(removals, Removal{Subtitle: list[i], Reason: ReasonIsolated})
			continue
		}
		if isMusicCue(list[i].Text) {
			remove[i] = true
			removals = append(removals, Removal{Subtitle: list[i], Reason: ReasonMusic})
		}
	}

	kept := make(List, 0, len(list))
	for i, sub := range list {
		if !remove[i] {
			kept = append(kept, sub)
		}
	}
	return kept, removals
}

func markRepeatedHallucinations(list List, remove []bool, removals *[]Removal) {
	i := 0
	for i < len(list) {
		norm := normalizeText(list[i].Text)
		if norm == "" {
			i++
			continue
		}
		runEnd := i + 1
		for runEnd < len(list) {
			if normalizeText(list[runEnd].Text) != norm {
				break
			}
			if gapBetween(list[runEnd-1], list[runEnd]) <= repeatGapMS {
				break
			}
			runEnd++
		}
		if runEnd-i >= minRepeatedRun {
			for j := i; j < runEnd; j++ {
				remove[j] = true
				*removals = append(*removals, Removal{Subtitle: list[j], Reason: ReasonRepeated})
			}
		}
		i = runEnd
	}
}

// sweepTrailingHallucinations drops known phrases and music in the final
// minutes without requiring isolation. Short recordings are left alone.
func sweepTrailingHallucinations(list List, durationMS uint64) (List, []Removal) {
	if durationMS < 2*trailingWindow || len(list) == 0 {
		return list, nil
	}
	threshold := durationMS - trailingWindow

	var removals []Removal
	kept := make(List, 0, len(list))
	for _, sub := range list {
		if sub.StartMS < threshold {
			kept = append(kept, sub)
			continue
		}
		if hallucinationPhrases[normalizeText(sub.Text)] {
			removals = append(removals, Removal{Subtitle: sub, Reason: ReasonTrailing})
			continue
		}
		if isMusicCue(sub.Text) {
			removals = append(removals, Removal{Subtitle: sub, Reason: ReasonTrailingMusic})
			continue
		}
		kept = append(kept, sub)
	}
	return kept, removals
}

func gapBetween(prev, next Subtitle) uint64 {
	if next.StartMS <= prev.EndMS {
		return 0
	}
	return next.StartMS - prev.EndMS
}

func gapToPrevious(list List, i int) uint64 {
	if i == 0 {
		return list[i].StartMS
	}
	return gapBetween(list[i-1], list[i])
}

func gapToNext(list List, i int) uint64 {
	if i >= len(list)-1 {
		return unboundedGapMS
	}
	return gapBetween(list[i], list[i+1])
}

// isMusicCue reports text made only of music notation symbols and whitespace.
func isMusicCue(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, r := range text {
		switch {
		case r == '\u00B6': // ¶
		case r == '\u266A': // ♪
		case r == '\u266B': // ♫
		case r == '*':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

// normalizeText lowercases and strips punctuation for phrase comparison.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = textNormalizeRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
