// Package preflight provides readiness checks for the filesystem paths, model
// files and external executables murmur depends on.
//
// These checks run in two contexts:
//   - "murmur serve" calls RunAll before accepting jobs and refuses to start
//     when a required check fails.
//   - "murmur status" renders every Result, plus ProbeServer for a running
//     API server, so operators can see what is missing.
//
// Optional checks (the VAD model, a running server) are skipped or reported
// without failing when the feature is not configured.
package preflight
