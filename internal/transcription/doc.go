// Package transcription turns 16 kHz mono audio into timed, confidence-scored
// segments.
//
// The Engine validates its Config before any audio is touched, loads a Model
// once, and opens an independent Session per call so concurrent transcriptions
// never share decoder state. Long inputs are split by the chunker and decoded
// strictly in order; segment times are shifted onto the source timeline and
// renumbered globally. Callers observe progress, segments and cancellation
// through the Observer interface or a ChannelObserver.
package transcription
