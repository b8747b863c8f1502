package service

import "errors"

var (
	ErrFollowSelf = errors.New("cannot follow self")
	// ErrMalformed marks an event that can never be processed; it is dropped, not retried.
	ErrMalformed = errors.New("malformed event")
)
