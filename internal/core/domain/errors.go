package domain

import "errors"

var (
	// ErrConfiguration means transport credentials are missing. Nothing can proceed.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuthorityUnavailable means a transport call failed for a reason other than not-found.
	ErrAuthorityUnavailable = errors.New("authority unavailable")
	// ErrUnauthorized is returned when a non-admin attempts promote or terminate.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the target identity or session was absent at call time.
	ErrNotFound = errors.New("not found")
	// ErrStale marks a response that refers to a negotiation already resolved locally.
	ErrStale = errors.New("stale negotiation")

	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNoPendingCall     = errors.New("no pending call")
	ErrDuplicateIdentity = errors.New("identity already present in session")
)
