// Package jobs runs transcriptions in the background for the HTTP API.
//
// The Manager owns a bounded pool of worker slots. Each submitted Job runs in
// its own goroutine, streams engine progress and segments through a
// transcription.ChannelObserver, and fans them out to any number of
// subscribers as Events. Jobs finish as succeeded, failed or cancelled;
// cancellation is never reported as a failure. Successful results are
// persisted to the transcript store, and a job whose audio fingerprint
// matches a stored entry reuses that entry instead of running the model.
//
// Every job also writes a JSON log file under the configured job log
// directory, in addition to the shared server log.
package jobs
