package models

import "errors"

// Sentinel errors for the ingestion and query operations.
// Callers classify wrapped errors with errors.Is.
var (
	// ErrEmptyInput marks invalid caller input: empty text, missing fields.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidPolicy marks an unusable chunking policy (overlap >= max size).
	ErrInvalidPolicy = errors.New("invalid chunking policy")
	// ErrDimensionMismatch marks vectors whose dimension disagrees with the store.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotFound marks a direct lookup of an unknown document ID.
	// Zero search results are not an error.
	ErrNotFound = errors.New("document not found")
	// ErrEmbedding marks a failure of the external embedding service.
	ErrEmbedding = errors.New("embedding service error")
	// ErrCompletion marks a failure of the external completion service.
	ErrCompletion = errors.New("completion service error")
	// ErrStore marks an I/O or serialization failure of the document store.
	ErrStore = errors.New("store error")
)
