// Package chunker cuts long recordings into inference-sized chunks, preferring
// boundaries that fall inside natural pauses.
//
// Split looks past each ideal boundary for the first silence run of at least
// MinSilenceMS, judged by an energy VAD whose threshold adapts to the search
// window. Boundaries inside silence advance without overlap; forced boundaries
// keep OverlapMS of audio so words cut mid-speech are heard twice rather than
// lost.
package chunker
