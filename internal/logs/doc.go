// Package logs reads murmur log output for the CLI.
//
// StreamClient pages through the server's /v1/logs buffer, optionally
// long-polling for new events. Tail reads the plain log file with bounded
// memory and supports "last N lines" and follow mode for when no server is
// running.
package logs
