// Package ffmpeg turns arbitrary media files into the mono 16 kHz PCM WAV the
// transcription engine accepts.
//
// The Converter probes the source with ffprobe, picks the speech stream in
// the preferred language, runs ffmpeg and re-reads the result to confirm the
// output format. WAV inputs that already match are loaded without a
// conversion.
package ffmpeg
