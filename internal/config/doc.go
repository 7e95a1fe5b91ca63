// Package config loads, normalizes, and validates murmur configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as MURMUR_MODEL_PATH and
// HF_TOKEN. The Config type centralizes every knob the CLI, the HTTP server
// and the transcription engine need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
