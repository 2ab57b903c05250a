package models

import "errors"

// Error taxonomy reported across the API boundary. Callers get the kind plus
// a human-readable message, never internal detail.
var (
	// ErrInvalidInput covers missing or malformed required fields and
	// unknown event kinds. Rejected before any persistence; not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound means an event referenced a session identifier
	// with no session row. Not retryable.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTransactionFailure is a store error mid-ingestion. The whole
	// attempt was rolled back, so retrying with the same payload is safe.
	ErrTransactionFailure = errors.New("transaction failure")

	// ErrStoreUnavailable is a read-path store error. Queries either fully
	// succeed or fully fail; no partial results are returned.
	ErrStoreUnavailable = errors.New("store unavailable")
)
