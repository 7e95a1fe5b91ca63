// Package store persists finished transcriptions and their edited subtitle
// lists in SQLite.
//
// Each Entry keeps the engine Result alongside the subtitle list derived from
// it, so edits made later never lose the original timing. Entries are keyed
// by UUID and indexed by a BLAKE3 fingerprint of the source audio, which lets
// callers reuse a transcript when the same audio is submitted again with the
// same model and language.
//
// The schema is embedded and versioned. A database written by a different
// schema version fails to open with ErrSchemaMismatch; delete the database
// to adopt the new schema.
package store
