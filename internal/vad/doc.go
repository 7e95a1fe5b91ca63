// Package vad implements the frame-energy voice activity detector and the
// silence trimmer built on top of it.
//
// EnergyVAD classifies fixed-size frames by RMS against a threshold. The
// trimmer derives an adaptive threshold from each window's own RMS so quiet
// and loud recordings are handled alike. Everything here is synchronous and
// allocation-light; callers own cancellation through the context passed to
// TrimSilence.
package vad
