package subtitles

import (
	"context"
	"fmt"
	"strings"

	"murmur/internal/audio"
	"murmur/internal/vad"
)

// Entry is the edited string form of a subtitle. StartCache and EndCache hold
// the timestamps from before the last OptimizeTimestamps so they can be restored.
type Entry struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	StartCache  string `json:"start_cache,omitempty"`
	EndCache    string `json:"end_cache,omitempty"`
}

// EntryError reports a bulk operation failure for one entry. Index is 0-based.
type EntryError struct {
	Index int
	Err   error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index+1, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// ToEntries converts subtitles to their editable string form.
func ToEntries(list List) []Entry {
	out := make([]Entry, 0, len(list))
	for _, sub := range list {
		out = append(out, Entry{
			Start: FormatSRT(sub.StartMS),
			End:   FormatSRT(sub.EndMS),
			Text:  sub.Text,
		})
	}
	return out
}

// Span parses the entry's timestamps.
func (e Entry) Span() (vad.Span, error) {
	start, err := ParseSRT(e.Start)
	if err != nil {
		return vad.Span{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseSRT(e.End)
	if err != nil {
		return vad.Span{}, fmt.Errorf("end: %w", err)
	}
	return vad.Span{StartMS: start, EndMS: end}, nil
}

// ToSubtitles converts entries to a numbered list. Entries with malformed
// timestamps are reported and skipped; a translation is appended on its own line.
func ToSubtitles(entries []Entry) (List, []EntryError) {
	list := make(List, 0, len(entries))
	var errs []EntryError
	for i, entry := range entries {
		span, err := entry.Span()
		if err != nil {
			errs = append(errs, EntryError{Index: i, Err: err})
			continue
		}
		text := entry.Text
		if strings.TrimSpace(entry.Translation) != "" {
			text += "\n" + entry.Translation
		}
		list = append(list, Subtitle{StartMS: span.StartMS, EndMS: span.EndMS, Text: text})
	}
	return list.Renumber(), errs
}

// OptimizeTimestamps trims leading and trailing silence from every entry with
// valid timestamps. Invalid entries are reported and left unchanged. The first
// optimisation of an entry stores its previous timestamps in the caches. When
// ctx is cancelled the entries are returned unchanged with vad.StatusCancelled.
func OptimizeTimestamps(ctx context.Context, data audio.Data, entries []Entry, factor float32, progress func(int)) ([]Entry, vad.Status, []EntryError, error) {
	out := make([]Entry, len(entries))
	copy(out, entries)

	var errs []EntryError
	windows := make([]vad.Span, 0, len(entries))
	positions := make([]int, 0, len(entries))
	for i, entry := range entries {
		span, err := entry.Span()
		if err != nil {
			errs = append(errs, EntryError{Index: i, Err: err})
			continue
		}
		windows = append(windows, span)
		positions = append(positions, i)
	}
	if len(windows) == 0 {
		return out, vad.StatusFinished, errs, nil
	}

	trimmed, status, err := vad.TrimSilence(ctx, data, windows, factor, progress)
	if err != nil {
		return entries, status, errs, fmt.Errorf("optimize timestamps: %w", err)
	}
	if status == vad.StatusCancelled {
		return out, status, errs, nil
	}
	if len(trimmed) != len(windows) {
		return entries, status, errs, fmt.Errorf("optimize timestamps: expected %d windows, got %d", len(windows), len(trimmed))
	}

	for k, idx := range positions {
		entry := &out[idx]
		if entry.StartCache == "" {
			entry.StartCache = entry.Start
			entry.EndCache = entry.End
		}
		entry.Start = FormatSRT(trimmed[k].StartMS)
		entry.End = FormatSRT(trimmed[k].EndMS)
	}
	return out, status, errs, nil
}

// RestoreTimestamps reverts entries that carry cached timestamps and clears the caches.
func RestoreTimestamps(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].StartCache == "" || out[i].EndCache == "" {
			continue
		}
		out[i].Start = out[i].StartCache
		out[i].End = out[i].EndCache
		out[i].StartCache = ""
		out[i].EndCache = ""
	}
	return out
}
