package service

import "errors"

var (
	// ErrStoreUnavailable wraps any failure talking to the message store.
	ErrStoreUnavailable = errors.New("message store unavailable")
	ErrValidation       = errors.New("validation failed")
	ErrRelayFailed      = errors.New("relay rejected message")
	ErrNoIntent         = errors.New("nothing to reconcile")
)
