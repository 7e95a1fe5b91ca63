package audio

import (
	"strconv"
	"strings"

	"murmur/internal/language"
	"murmur/internal/media/ffprobe"
)

// Selection describes the audio stream chosen for transcription.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	// Language is the stream's language as ISO 639-1, empty when untagged.
	Language string
	// Matched reports whether the stream matched the requested language.
	Matched bool
	// Candidates is the number of audio streams considered.
	Candidates int
}

// Found reports whether any audio stream was selected.
func (s Selection) Found() bool {
	return s.PrimaryIndex >= 0
}

// PrimaryLabel returns a human-readable summary of the selected stream.
func (s Selection) PrimaryLabel() string {
	if s.PrimaryIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select returns the audio stream best suited to speech transcription in the
// preferred language. An empty or "auto" language skips the language filter.
func Select(streams []ffprobe.Stream, preferred string) Selection {
	candidates := buildCandidates(streams)
	if len(candidates) == 0 {
		return Selection{PrimaryIndex: -1}
	}

	want := language.ToISO2(preferred)
	pool := candidates
	matched := false
	if want != "" {
		if filtered := candidates.language(want); len(filtered) > 0 {
			pool = filtered
			matched = true
		}
	}

	primary := choosePrimary(pool)
	return Selection{
		Primary:      primary.stream,
		PrimaryIndex: primary.stream.Index,
		Language:     primary.language,
		Matched:      matched,
		Candidates:   len(candidates),
	}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	language       string
	title          string
	commentary     bool
	isLossless     bool
	channels       int
	defaultFlagged bool
}

type candidateList []candidate

func (c candidateList) language(code string) candidateList {
	result := make(candidateList, 0, len(c))
	for _, cand := range c {
		if cand.language == code {
			result = append(result, cand)
		}
	}
	return result
}

func choosePrimary(candidates candidateList) candidate {
	best := candidates[0]
	bestScore := scorePrimary(best)
	for i := 1; i < len(candidates); i++ {
		score := scorePrimary(candidates[i])
		if score > bestScore {
			best = candidates[i]
			bestScore = score
		}
	}
	return best
}

func scorePrimary(cand candidate) float64 {
	score := 0.0
	if !cand.commentary {
		score += 1000
	}
	if cand.defaultFlagged {
		score += 500
	}

	switch {
	case cand.channels >= 6:
		score += 60
	case cand.channels >= 2:
		score += 40
	case cand.channels == 1:
		score += 20
	}

	if cand.isLossless {
		score += 10
	}

	// Earlier tracks win ties.
	score -= float64(cand.order) * 0.1
	return score
}

func buildCandidates(streams []ffprobe.Stream) candidateList {
	result := make(candidateList, 0)
	order := 0
	for _, stream := range streams {
		if !stream.IsAudio() {
			continue
		}
		title := strings.ToLower(stream.Tag("title", "handler_name"))
		cand := candidate{
			stream:         stream,
			order:          order,
			language:       language.ToISO2(stream.Tag("language", "language_ietf", "lang")),
			title:          title,
			commentary:     isCommentary(stream, title),
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			isLossless:     detectLossless(stream),
		}
		result = append(result, cand)
		order++
	}
	return result
}

func isCommentary(stream ffprobe.Stream, title string) bool {
	if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
		return true
	}
	for _, keyword := range []string{"commentary", "director", "descriptive", "audio description"} {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	}
	if strings.Contains(layout, ".") {
		total := 0
		for _, part := range strings.Split(layout, ".") {
			part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
			if n, err := strconv.Atoi(part); err == nil {
				total += n
			}
		}
		return total
	}
	return 0
}

func detectLossless(stream ffprobe.Stream) bool {
	name := strings.ToLower(stream.CodecName)
	long := strings.ToLower(stream.CodecLong)
	switch name {
	case "truehd", "flac", "mlp", "alac", "pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_f32le", "pcm_bluray", "pcm_s24be", "pcm_s16be":
		return true
	}
	return strings.Contains(long, "lossless") || strings.Contains(long, "master audio")
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := stream.Tag("language"); lang != "" {
		parts = append(parts, strings.ToLower(lang))
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := stream.Tag("title"); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
