package domain

import "errors"

// Error taxonomy shared across the pipeline. Callers classify failures with
// errors.Is; everything else is an internal error.
var (
	// ErrBackendUnavailable is returned when every model target in the
	// fallback chain has failed. Terminal for the request.
	ErrBackendUnavailable = errors.New("all model backends unavailable")

	// ErrCollectionNotFound is returned for queries against a collection
	// that was never created. Structural, never retried.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrQueueFull signals backpressure: the caller should retry later
	// with backoff.
	ErrQueueFull = errors.New("job queue full")

	// ErrCancelled marks a job that was cancelled before a worker claimed it.
	ErrCancelled = errors.New("job cancelled")

	// ErrJobNotFound is returned for lookups of job IDs the queue has no
	// record of.
	ErrJobNotFound = errors.New("job not found")

	// ErrTimeout marks a single backend call that exceeded its budget.
	// The router treats it as an escalation trigger, not a terminal error.
	ErrTimeout = errors.New("backend call timed out")

	// ErrValidation rejects malformed requests before they enter the pipeline.
	ErrValidation = errors.New("invalid request")
)
