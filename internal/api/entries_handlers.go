package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"murmur/internal/services"
	"murmur/internal/subtitles"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, EntryListResponse{Entries: []EntrySummary{}})
		return
	}
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]EntrySummary, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	s.writeJSON(w, http.StatusOK, EntryListResponse{Entries: out})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		s.writeError(w, notFound("entry", id))
		return
	}
	entry, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EntryResponse{Entry: entry})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		s.writeError(w, notFound("entry", id))
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSubtitles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		s.writeError(w, notFound("entry", id))
		return
	}
	var req SubtitlesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	for _, sub := range req.Subtitles {
		if sub.EndMS < sub.StartMS {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "update subtitles",
				fmt.Sprintf("subtitle %d ends before it starts", sub.Index), nil))
			return
		}
	}
	entry, err := s.store.UpdateSubtitles(r.Context(), id, req.Subtitles.Renumber())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EntryResponse{Entry: entry})
}

func (s *Server) handleExportSubtitles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := subtitles.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "export subtitles", "", err))
		return
	}
	if s.store == nil {
		s.writeError(w, notFound("entry", id))
		return
	}
	entry, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	body, err := subtitles.Encode(format, entry.Subtitles)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.ID+"."+string(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
