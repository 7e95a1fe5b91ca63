// Package subtitles turns transcription results into editable subtitle lists
// and moves them in and out of SRT, WebVTT and plain text.
//
// Timestamps use the SRT form HH:MM:SS,mmm where the fractional field is a
// direct millisecond count. Editing helpers (split, merge, insert, remove,
// text replacement) return new lists and leave the receiver untouched. The
// Entry type carries the user-edited string form of a subtitle so bulk
// operations can report malformed timestamps per entry without aborting.
package subtitles
