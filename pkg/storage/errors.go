package storage

import "errors"

// ErrCacheBackend classifies every failure of the shared store.
var ErrCacheBackend = errors.New("cache backend error")

// BackendError describes one failed shared store command. It never leaves this package:
// Cache logs it, counts it and degrades to the local tier.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	msg := "cache backend " + e.Op + " failed"
	if e.Key != "" {
		msg += " (key: " + e.Key + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrCacheBackend, e.Err}
}
