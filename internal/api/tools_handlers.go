package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"murmur/internal/logging"
	"murmur/internal/subtitles"
)

const defaultLogLimit = 200

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	first, second, ok := subtitles.SplitIntoTwo(req.StartMS, req.EndMS, req.Text)
	s.writeJSON(w, http.StatusOK, SplitResponse{Split: ok, First: first, Second: second})
}

func (s *Server) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	var req TimestampRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]Timestamp, 0, len(req.Milliseconds))
	for _, ms := range req.Milliseconds {
		out = append(out, Timestamp{
			Milliseconds: ms,
			SRT:          subtitles.FormatSRT(ms),
			VTT:          subtitles.FormatVTT(ms),
		})
	}
	s.writeJSON(w, http.StatusOK, TimestampResponse{Timestamps: out})
}

// handleLogs returns buffered log events after ?since=. With follow=1 it
// blocks until at least one event arrives; tail=1 returns the newest events.
// job= and component= keep matching lines; level= drops lines below it.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: []logging.LogEvent{}})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := truthy(query.Get("follow"))
	tail := truthy(query.Get("tail"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = s.hub.Tail(limit)
	} else {
		var err error
		events, next, err = s.hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, err)
			return
		}
	}
	events = logging.FilterJob(events, query.Get("job"))
	events = filterEvents(events, query.Get("component"), query.Get("level"))
	if events == nil {
		events = []logging.LogEvent{}
	}
	s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: events, Next: next})
}

func truthy(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true")
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

func filterEvents(events []logging.LogEvent, component, level string) []logging.LogEvent {
	component = strings.TrimSpace(component)
	minRank, filterLevel := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if component == "" && !filterLevel {
		return events
	}
	out := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(evt.Component, component) {
			continue
		}
		if filterLevel && levelRank[strings.ToLower(evt.Level)] < minRank {
			continue
		}
		out = append(out, evt)
	}
	return out
}
