package jobs

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/store"
	"murmur/internal/subtitles"
	"murmur/internal/transcription"
)

func (m *Manager) run(ctx context.Context, job *Job, engine *transcription.Engine) {
	defer m.wg.Done()
	defer job.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		job.finish(StateCancelled, nil, "", false, nil, "")
		return
	}
	if ctx.Err() != nil {
		job.finish(StateCancelled, nil, "", false, nil, "")
		return
	}

	logger, closeLog := m.jobLogger(ctx, job.id)
	defer closeLog()

	job.start()
	logger.Info("transcription started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("source", job.req.Source),
		logging.String("language", job.req.Language),
	)

	if entry := m.cachedEntry(ctx, logger, job); entry != nil {
		result := entry.Result
		job.finish(StateSucceeded, &result, entry.ID, true, nil, "")
		logger.Info("transcript reused",
			logging.String(logging.FieldEventType, "job_cached"),
			logging.String("entry_id", entry.ID),
		)
		return
	}

	obs := transcription.NewChannelObserver(m.cfg.Server.EventBuffer)
	job.attach(obs)
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		sampler := logging.NewProgressSampler(10)
		for evt := range obs.Events() {
			switch evt.Kind {
			case transcription.EventProgress:
				job.setProgress(evt.Progress)
				if sampler.ShouldLog(float64(evt.Progress), "transcribe") {
					logger.Info("transcription progress",
						logging.String(logging.FieldEventType, "job_progress"),
						logging.Int(logging.FieldProgressPercent, evt.Progress),
					)
				}
			case transcription.EventSegment:
				job.addSegment(evt.Segment)
			}
		}
	}()

	result, err := engine.Transcribe(ctx, job.req.Data, obs)
	obs.Close()
	<-pumped

	switch {
	case errors.Is(err, transcription.ErrAborted) || (err != nil && ctx.Err() != nil):
		logger.Info("transcription cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
		job.finish(StateCancelled, nil, "", false, nil, "")
		return
	case err != nil:
		code := services.ErrorCode(err)
		logging.ErrorWithContext(logger, "transcription failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorCode, code),
		)
		job.finish(StateFailed, nil, "", false, err, code)
		return
	}

	final, list := PostProcess(m.cfg, logger, *result)
	entryID, err := m.persist(ctx, job, final, list)
	if err != nil {
		code := services.ErrorCode(err)
		logging.ErrorWithContext(logger, "persist transcript failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorCode, code),
		)
		job.finish(StateFailed, &final, "", false, err, code)
		return
	}

	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("segments", len(final.Segments)),
		logging.String("language", final.Language),
		logging.Duration("processing_time", final.ProcessingTime()),
		logging.String("entry_id", entryID),
	)
	job.finish(StateSucceeded, &final, entryID, false, nil, "")
}

// PostProcess applies the configured confidence floor and subtitle cleanup
// to a finished transcription.
func PostProcess(cfg *config.Config, logger *slog.Logger, result transcription.Result) (transcription.Result, subtitles.List) {
	if floor := cfg.Transcription.MinConfidence; floor > 0 {
		before := len(result.Segments)
		result = result.FilterByConfidence(float32(floor))
		if dropped := before - len(result.Segments); dropped > 0 {
			logger.Info("low confidence segments dropped",
				logging.Int("dropped", dropped),
				logging.Float64("min_confidence", floor),
			)
		}
	}
	list := subtitles.FromResult(result)
	if cfg.Transcription.FilterHallucinations {
		filtered := subtitles.FilterHallucinations(list, result.AudioDurationMS)
		subtitles.LogFilterSummary(logger, filtered)
		list = filtered.Kept.Renumber()
	}
	return result, list
}

func (m *Manager) persist(ctx context.Context, job *Job, result transcription.Result, list subtitles.List) (string, error) {
	if m.store == nil {
		return "", nil
	}
	lang := job.req.Language
	if lang == "" || lang == "auto" {
		lang = result.Language
	}
	entry := &store.Entry{
		SourcePath:  job.req.Source,
		Fingerprint: job.req.Fingerprint,
		Model:       m.model,
		Language:    lang,
		Result:      result,
		Subtitles:   list,
	}
	// The job context may already be cancelled by a late Cancel; the
	// transcript is complete, so persist it regardless.
	if err := m.store.Create(context.WithoutCancel(ctx), entry); err != nil {
		return "", services.Wrap(services.ErrTransient, "persist", "store", "", err)
	}
	return entry.ID, nil
}

func (m *Manager) cachedEntry(ctx context.Context, logger *slog.Logger, job *Job) *store.Entry {
	if m.store == nil || job.req.Fingerprint == "" {
		return nil
	}
	lang := job.req.Language
	if lang == "auto" {
		lang = ""
	}
	entry, err := m.store.FindByFingerprint(ctx, job.req.Fingerprint, m.model, lang)
	if err != nil {
		logging.WarnWithContext(logger, "transcript cache lookup failed", "cache_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio is transcribed again"),
		)
		return nil
	}
	return entry
}

// jobLogger tees the manager logger into a per-job JSON file.
func (m *Manager) jobLogger(ctx context.Context, id string) (*slog.Logger, func()) {
	base := logging.WithContext(ctx, m.logger)
	dir := m.cfg.JobLogDir()
	if dir == "" {
		return base, func() {}
	}
	handler, closer, err := logging.OpenFileHandler(filepath.Join(dir, id+".log"), m.cfg.Logging.Level)
	if err != nil {
		logging.WarnWithContext(base, "job log unavailable", "job_log_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job output only reaches the server log"),
		)
		return base, func() {}
	}
	fileHandler := handler.WithAttrs([]slog.Attr{
		slog.String(logging.FieldComponent, "jobs"),
		slog.String(logging.FieldJobID, id),
	})
	return logging.TeeLogger(base, fileHandler), func() { _ = closer.Close() }
}
