package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"murmur/internal/audio"
	"murmur/internal/jobs"
	"murmur/internal/services"
	"murmur/internal/store"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Server.MaxUploadMB) << 20
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			err = services.Wrap(services.ErrValidation, "api", "read upload", "", err)
		}
		s.writeError(w, err)
		return
	}
	if len(payload) == 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "read upload", "empty body", nil))
		return
	}

	data, err := audio.ReadWAV(bytes.NewReader(payload))
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode wav", "", err))
		return
	}
	if data.Channels > 1 {
		data = data.ToMono()
	}

	var fingerprint string
	if s.store != nil {
		fingerprint, err = store.Fingerprint(bytes.NewReader(payload))
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	query := r.URL.Query()
	source := strings.TrimSpace(query.Get("source"))
	if source == "" {
		source = "upload"
	}
	job, err := s.manager.Submit(jobs.Request{
		Data:        data,
		Source:      source,
		Language:    query.Get("language"),
		Fingerprint: fingerprint,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID())
	s.writeJSON(w, http.StatusAccepted, JobResponse{Job: job.Snapshot()})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: s.manager.List()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: job.Snapshot()})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.manager.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, JobResponse{Job: snapshot})
}
