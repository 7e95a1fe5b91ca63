// Package whisperx is the inference backend behind transcription.Model. Each
// session writes its samples to a private WAV file, launches whisperx through
// uvx and converts the JSON output into raw segments with per-word scores.
//
// Progress is parsed from the tool's "Progress: NN%" output and the abort
// predicate is polled while the process runs; an abort kills the process and
// surfaces as transcription.ErrAborted.
//
// Tests inject a Runner through WithCommandRunner so no Python tooling is needed.
package whisperx
