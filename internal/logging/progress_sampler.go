package logging

import "strings"

const defaultProgressBucket = 5

// ProgressSampler thins progress logging to one line per percentage bucket,
// restarting whenever the stage changes.
type ProgressSampler struct {
	bucket     float64
	stage      string
	lastBucket int
}

// NewProgressSampler returns a sampler with bucket-percent granularity. A
// non-positive bucket selects 5%.
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 {
		bucket = defaultProgressBucket
	}
	return &ProgressSampler{bucket: bucket, lastBucket: -1}
}

// ShouldLog reports whether percent in stage is worth logging. A negative
// percent only logs on a stage change. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	bucket := int(min(percent, 100) / s.bucket)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset forgets the last stage and bucket.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.stage = ""
		s.lastBucket = -1
	}
}
