package domain

import "errors"

// Failure kinds surfaced to clients. Only ErrAuthenticationFailed ever
// terminates a connection; everything else is reported to the sender and the
// connection stays open.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccessDenied         = errors.New("access denied")
	ErrRoomNotFound         = errors.New("room not found")
	ErrPersistence          = errors.New("persistence failed")
	ErrInvalidPayload       = errors.New("invalid payload")
)
