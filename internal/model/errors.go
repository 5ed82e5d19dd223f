package model

import "errors"

var (
	// ErrInvalidQuery is returned for malformed requests. Never retried.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidFilter is returned by the storage layer for filter values it cannot evaluate
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrBackendUnavailable signals a lost connection or an exhausted pool. Retryable by the caller.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrTimeout signals that a storage call exceeded its deadline.
	// errors.Is(ErrTimeout, ErrBackendUnavailable) holds.
	ErrTimeout = &timeoutError{}
	// ErrNotFound is used by outer layers for absent single entities
	ErrNotFound = errors.New("not found")
)

type timeoutError struct{}

func (*timeoutError) Error() string { return "backend timeout" }

func (*timeoutError) Unwrap() error { return ErrBackendUnavailable }
