// Package audio holds the PCM sample model shared by the VAD, chunker,
// trimmer and transcription engine.
//
// Samples are 32-bit floats in [-1, 1], interleaved when the stream has more
// than one channel. All conversions between milliseconds and sample indices go
// through MSToSampleIndex and SamplesToMS so every component rounds the same
// way (floor, integer arithmetic). WAV decoding and encoding use go-audio.
package audio
