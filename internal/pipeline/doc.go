// Package pipeline runs the verification sequence against a browser.
//
// A verification is a fixed, ordered list of Steps executed by a Pipeline.
// Each step receives the shared Run (the open browser, the current page and
// the report) and either advances it or returns an error that aborts the
// rest of the sequence. No step is retried and no two steps run at once.
//
// The Verifier owns the browser: it launches it, runs the pipeline, and
// closes it exactly once on every exit path. The BatchProcessor runs several
// independent verifications concurrently with errgroup, each in its own
// browser.
package pipeline
