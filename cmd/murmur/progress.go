package main

import (
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"murmur/internal/logging"
)

// progressReporter renders percent updates as a bar on a terminal and as
// sampled log lines everywhere else.
type progressReporter struct {
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	stage   string
}

func newProgressReporter(cmd *cobra.Command, logger *slog.Logger, stage, description string) *progressReporter {
	r := &progressReporter{logger: logger, stage: stage}
	if shouldColorize(cmd.ErrOrStderr()) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		return r
	}
	r.sampler = logging.NewProgressSampler(10)
	return r
}

func (r *progressReporter) update(percent int) {
	if r == nil {
		return
	}
	if r.bar != nil {
		_ = r.bar.Set(percent)
		return
	}
	if r.logger != nil && r.sampler.ShouldLog(float64(percent), r.stage) {
		r.logger.Info(r.stage+" progress",
			logging.String(logging.FieldEventType, r.stage+"_progress"),
			logging.Int(logging.FieldProgressPercent, percent),
		)
	}
}

func (r *progressReporter) finish() {
	if r != nil && r.bar != nil {
		_ = r.bar.Finish()
	}
}
