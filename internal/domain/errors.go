package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrLockHeld          = errors.New("lock already held")
	ErrMissingConstraint = errors.New("missing market constraint")
	ErrOrderRejected     = errors.New("order rejected")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrUnknownVenue      = errors.New("unknown venue")
)
