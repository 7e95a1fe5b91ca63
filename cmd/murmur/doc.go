// Command murmur transcribes audio into timed subtitles.
//
// Offline commands (transcribe, convert, trim, split, vad, rms, waveform)
// work on local files; transcripts are stored in the SQLite database under
// paths.data_dir and managed with the entries subcommands. "murmur serve"
// starts the HTTP API and job runner; "murmur status" reports readiness.
package main
