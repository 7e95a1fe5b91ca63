package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"murmur/internal/services"
	"murmur/internal/subtitles"
	"murmur/internal/transcription"
)

// ErrNotFound reports a missing entry. It matches services.ErrNotFound.
var ErrNotFound = fmt.Errorf("entry %w", services.ErrNotFound)

// Entry is a stored transcription with its editable subtitle list.
type Entry struct {
	ID          string               `json:"id"`
	SourcePath  string               `json:"source_path,omitempty"`
	Fingerprint string               `json:"fingerprint,omitempty"`
	Model       string               `json:"model,omitempty"`
	Language    string               `json:"language,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Result      transcription.Result `json:"result"`
	Subtitles   subtitles.List       `json:"subtitles"`
}

// DurationMS returns the transcribed audio duration.
func (e Entry) DurationMS() uint64 {
	return e.Result.AudioDurationMS
}

const entryColumns = "id, source_path, fingerprint, model, language, result_json, subtitles_json, created_at, updated_at"

// Create inserts entry, assigning an ID and timestamps. A nil subtitle list
// is derived from the result.
func (s *Store) Create(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Subtitles == nil {
		entry.Subtitles = subtitles.FromResult(entry.Result)
	}
	if entry.Language == "" {
		entry.Language = entry.Result.Language
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	resultJSON, subsJSON, err := encodePayload(entry)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO entries (
            id, source_path, fingerprint, model, language, duration_ms,
            result_json, subtitles_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullableString(entry.SourcePath),
		nullableString(entry.Fingerprint),
		entry.Model,
		entry.Language,
		int64(entry.Result.AudioDurationMS),
		resultJSON,
		subsJSON,
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Get fetches an entry by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns every entry, newest first.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// UpdateSubtitles replaces the subtitle list of an entry.
func (s *Store) UpdateSubtitles(ctx context.Context, id string, list subtitles.List) (*Entry, error) {
	payload, err := json.Marshal(normalizeList(list))
	if err != nil {
		return nil, fmt.Errorf("marshal subtitles: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entries SET subtitles_json = ?, updated_at = ? WHERE id = ?`,
		string(payload),
		now.Format(timeLayout),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update subtitles: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// FindByFingerprint returns the newest entry transcribed from the same audio
// with the same model and language, or nil when none exists. An empty
// language matches entries in any language.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint, model, language string) (*Entry, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM entries
         WHERE fingerprint = ? AND model = ? AND (? = '' OR language = ?)
         ORDER BY created_at DESC LIMIT 1`,
		fingerprint,
		model,
		language,
		language,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return entry, nil
}
