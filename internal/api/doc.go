// Package api serves the murmur HTTP API.
//
// Routes are mounted on a chi router. Job submission accepts a 16 kHz mono WAV
// body and returns immediately; progress, segments and the final state are
// streamed over a WebSocket at /v1/jobs/{id}/events. Stored transcripts are
// browsable under /v1/entries and exportable as SRT, VTT or plain text.
// Stateless helpers expose subtitle splitting and timestamp formatting.
//
// # Errors
//
// Failures are returned as {"error": "...", "code": "..."} where code is the
// services error code (validation, not_found, ...). The HTTP status follows the
// code; see statusFor.
//
// # Authentication
//
// When server.token is configured every /v1 route requires
// "Authorization: Bearer <token>". /healthz stays open.
package api
