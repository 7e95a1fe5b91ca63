package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"murmur/internal/subtitles"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		sourcePath  *string
		fingerprint *string
		resultJSON  string
		subsJSON    string
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&entry.ID,
		&sourcePath,
		&fingerprint,
		&entry.Model,
		&entry.Language,
		&resultJSON,
		&subsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if sourcePath != nil {
		entry.SourcePath = *sourcePath
	}
	if fingerprint != nil {
		entry.Fingerprint = *fingerprint
	}
	if err := json.Unmarshal([]byte(resultJSON), &entry.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if err := json.Unmarshal([]byte(subsJSON), &entry.Subtitles); err != nil {
		return nil, fmt.Errorf("decode subtitles: %w", err)
	}
	entry.Subtitles = normalizeList(entry.Subtitles)
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

func encodePayload(entry *Entry) (string, string, error) {
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return "", "", fmt.Errorf("marshal result: %w", err)
	}
	subs, err := json.Marshal(normalizeList(entry.Subtitles))
	if err != nil {
		return "", "", fmt.Errorf("marshal subtitles: %w", err)
	}
	return string(result), string(subs), nil
}

func normalizeList(list subtitles.List) subtitles.List {
	if list == nil {
		return subtitles.List{}
	}
	return list
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
