package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format selects an export encoding.
type Format string

const (
	SRT  Format = "srt"
	VTT  Format = "vtt"
	Text Format = "txt"
)

// ParseFormat accepts srt, vtt or txt (case-insensitive, optional leading dot).
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")); f {
	case SRT, VTT, Text:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", value)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType is the HTTP media type for the format.
func (f Format) ContentType() string {
	switch f {
	case VTT:
		return "text/vtt; charset=utf-8"
	case SRT:
		return "application/x-subrip; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Encode renders list in the given format.
func Encode(format Format, list List) (string, error) {
	switch format {
	case SRT:
		return EncodeSRT(list), nil
	case VTT:
		return EncodeVTT(list), nil
	case Text:
		return EncodeText(list), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", format)
	}
}

// EncodeSRT writes each cue as index, time range, text and a blank line.
func EncodeSRT(list List) string {
	var sb strings.Builder
	for _, sub := range list {
		writeCue(&sb, sub, FormatSRT)
	}
	return sb.String()
}

// EncodeVTT is EncodeSRT with a WEBVTT header and period millisecond separators.
func EncodeVTT(list List) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, sub := range list {
		writeCue(&sb, sub, FormatVTT)
	}
	return sb.String()
}

// EncodeText concatenates the cue texts, each followed by one space.
func EncodeText(list List) string {
	var sb strings.Builder
	for _, sub := range list {
		sb.WriteString(sub.Text)
		sb.WriteByte(' ')
	}
	return sb.String()
}

func writeCue(sb *strings.Builder, sub Subtitle, stamp func(uint64) string) {
	sb.WriteString(strconv.Itoa(sub.Index))
	sb.WriteByte('\n')
	sb.WriteString(stamp(sub.StartMS))
	sb.WriteString(" --> ")
	sb.WriteString(stamp(sub.EndMS))
	sb.WriteByte('\n')
	sb.WriteString(sub.Text)
	sb.WriteString("\n\n")
}

// WriteFile encodes list and writes it to path through a temp file rename.
func WriteFile(path string, format Format, list List) error {
	content, err := Encode(format, list)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure subtitle dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp subtitle: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write subtitle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close subtitle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename subtitle: %w", err)
	}
	return nil
}
