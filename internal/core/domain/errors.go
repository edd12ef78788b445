package domain

import "errors"

var (
	// ErrAlreadyClaimed is returned when a hostname already has an owner.
	ErrAlreadyClaimed = errors.New("hostname already claimed")
	// ErrStoreUnavailable wraps transient entity-store failures. It must never
	// be read as "not found".
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrProviderFailure wraps any DNS provider failure.
	ErrProviderFailure = errors.New("dns provider failure")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidHostname = errors.New("invalid hostname")
	ErrUnauthenticated = errors.New("unauthenticated")
)
