// Package logging assembles structured slog loggers and formatting helpers used
// across murmur.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can automatically
// tag log lines with job IDs, stages, and correlation IDs. A bounded StreamHub
// keeps recent records in memory for the HTTP API, and TeeLogger copies job
// logs into per-job files. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
