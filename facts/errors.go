package facts

import "errors"

var (
	// ErrNotFound is returned by strict lookups when the fact is absent.
	ErrNotFound = errors.New("fact not found")

	// ErrPersistence wraps backend write failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrNoStorage is returned by write paths when no backend is bound.
	ErrNoStorage = errors.New("no storage backend bound")
)
