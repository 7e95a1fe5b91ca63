// Package audio ranks the audio streams of a media container to find the
// one worth transcribing.
//
// Candidates are filtered to the requested language (falling back to every
// audio stream when none match), then ranked by:
//  1. Commentary and audio-description tracks last
//  2. Default disposition
//  3. Channel count, since a 5.1 mix keeps dialogue on its own center channel
//  4. Lossless codecs over lossy
//
// Primary entry point:
//   - Select: analyzes streams and returns the chosen speech stream
package audio
