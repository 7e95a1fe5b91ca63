package subtitles

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DecodeSRT parses SRT (or WebVTT) cues. Blocks without a readable time range
// are skipped; the result is renumbered in file order.
func DecodeSRT(r io.Reader) (List, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\uFEFF")

	var list List
	for _, block := range splitBlocks(content) {
		sub, ok := parseBlock(block)
		if ok {
			list = append(list, sub)
		}
	}
	return list.Renumber(), nil
}

// ReadFile decodes the SRT or WebVTT file at path.
func ReadFile(path string) (List, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitles: %w", err)
	}
	defer file.Close()
	return DecodeSRT(file)
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n\n")
}

func parseBlock(block string) (Subtitle, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	timing := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 {
		return Subtitle{}, false
	}
	startText, endText, _ := strings.Cut(lines[timing], "-->")
	start, err := parseCueTimestamp(startText)
	if err != nil {
		return Subtitle{}, false
	}
	// WebVTT cue settings may follow the end time.
	endFields := strings.Fields(endText)
	if len(endFields) == 0 {
		return Subtitle{}, false
	}
	end, err := parseCueTimestamp(endFields[0])
	if err != nil {
		return Subtitle{}, false
	}
	text := make([]string, 0, len(lines)-timing-1)
	for _, line := range lines[timing+1:] {
		if trimmed := strings.TrimRight(line, " \t"); trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return Subtitle{StartMS: start, EndMS: end, Text: strings.Join(text, "\n")}, true
}

func parseCueTimestamp(value string) (uint64, error) {
	if ms, err := ParseSRT(value); err == nil {
		return ms, nil
	}
	return ParseVTT(value)
}
