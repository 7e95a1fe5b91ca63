// Package logstream prints log events from a running server and falls back
// to tailing the local log file when no server is reachable.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"murmur/internal/logging"
	"murmur/internal/logs"
)

// ErrFiltersRequireAPI is returned when filters are set but only the log file
// is available.
var ErrFiltersRequireAPI = errors.New("log filters require a running server")

const (
	followBatch = 200
	fileWait    = time.Second
)

// Filters narrows API streaming.
type Filters struct {
	JobID     string
	Component string
	Level     string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.JobID) == "" &&
		strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.Level) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream emits events from the API when available, otherwise raw lines from
// logPath. It reports whether anything was emitted.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	logPath string,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil || !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if printed {
		// The server went away mid-follow.
		return printed, nil
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if strings.TrimSpace(logPath) == "" {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, logPath, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		JobID:     opts.Filters.JobID,
		Component: opts.Filters.Component,
		Level:     opts.Filters.Level,
	}
	if query.Limit <= 0 {
		query.Limit = followBatch
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = followBatch
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, path string, opts Options, onLine func(string)) (bool, error) {
	// Zero lines means the whole file.
	tailOpts := logs.TailOptions{Offset: -1, Limit: opts.Lines}
	if opts.Lines <= 0 {
		tailOpts = logs.TailOptions{Offset: 0}
	}

	printed := false
	for {
		result, err := logs.Tail(ctx, path, tailOpts)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow || ctx.Err() != nil {
			return printed, nil
		}
		tailOpts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: fileWait}
	}
}
