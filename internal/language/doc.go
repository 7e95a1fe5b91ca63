// Package language normalizes the language codes accepted by the CLI, the
// configuration file and the HTTP API into the ISO 639-1 form the inference
// backend expects. "auto" (or an empty value) requests detection.
package language
