// Package kverr defines the sentinel error taxonomy shared by every
// storage backend, the dictionary, and the SPARQL executor.
package kverr

import "errors"

var (
	// ErrNotFound is returned by Get for a missing key, or by Dictionary.Lookup
	// for an id never issued by that instance.
	ErrNotFound = errors.New("kverr: not found")

	// ErrIo wraps an underlying read/write failure on a persistent backend.
	ErrIo = errors.New("kverr: io failure")

	// ErrCorruption indicates a checksum or structural invariant violation on
	// a persistent backend. Fatal to that backend instance.
	ErrCorruption = errors.New("kverr: corruption")

	// ErrOutOfSpace indicates the dictionary id space, or a persistent
	// backend's disk/mmap space, is exhausted.
	ErrOutOfSpace = errors.New("kverr: out of space")

	// ErrBackend wraps an uncategorized backend-internal failure.
	ErrBackend = errors.New("kverr: backend failure")

	// ErrReadOnly is returned when a write is attempted against a read-only
	// transaction or handle.
	ErrReadOnly = errors.New("kverr: read-only transaction")

	// ErrCancelled indicates a cooperative cancellation was observed at an
	// operator boundary.
	ErrCancelled = errors.New("kverr: cancelled")

	// ErrTimeout indicates a deadline passed to an executor entry point
	// elapsed before the operation completed.
	ErrTimeout = errors.New("kverr: timeout")
)
