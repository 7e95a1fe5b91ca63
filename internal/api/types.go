package api

import (
	"time"

	"murmur/internal/jobs"
	"murmur/internal/logging"
	"murmur/internal/store"
	"murmur/internal/subtitles"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
	Model      string `json:"model"`
	Database   string `json:"database,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job jobs.Snapshot `json:"job"`
}

// JobListResponse wraps every known job.
type JobListResponse struct {
	Jobs []jobs.Snapshot `json:"jobs"`
}

// EntrySummary is the list form of a stored transcript.
type EntrySummary struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path,omitempty"`
	Model      string    `json:"model,omitempty"`
	Language   string    `json:"language,omitempty"`
	DurationMS uint64    `json:"duration_ms"`
	Subtitles  int       `json:"subtitles"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EntryListResponse wraps stored transcript summaries.
type EntryListResponse struct {
	Entries []EntrySummary `json:"entries"`
}

// EntryResponse wraps a full stored transcript.
type EntryResponse struct {
	Entry *store.Entry `json:"entry"`
}

// SubtitlesRequest replaces the subtitle list of an entry.
type SubtitlesRequest struct {
	Subtitles subtitles.List `json:"subtitles"`
}

// SplitRequest asks for a cue to be divided in two.
type SplitRequest struct {
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
	Text    string `json:"text"`
}

// SplitResponse carries both halves. Split is false when the cue could not be divided.
type SplitResponse struct {
	Split  bool           `json:"split"`
	First  subtitles.Part `json:"first"`
	Second subtitles.Part `json:"second"`
}

// TimestampRequest lists millisecond offsets to format.
type TimestampRequest struct {
	Milliseconds []uint64 `json:"milliseconds"`
}

// Timestamp is one offset in both subtitle notations.
type Timestamp struct {
	Milliseconds uint64 `json:"milliseconds"`
	SRT          string `json:"srt"`
	VTT          string `json:"vtt"`
}

// TimestampResponse returns formatted offsets in request order.
type TimestampResponse struct {
	Timestamps []Timestamp `json:"timestamps"`
}

// LogStreamResponse returns buffered log events after a cursor.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// FromEntry builds the list form of entry.
func FromEntry(entry *store.Entry) EntrySummary {
	return EntrySummary{
		ID:         entry.ID,
		SourcePath: entry.SourcePath,
		Model:      entry.Model,
		Language:   entry.Language,
		DurationMS: entry.DurationMS(),
		Subtitles:  len(entry.Subtitles),
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}
}
