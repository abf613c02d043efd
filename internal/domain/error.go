package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrSessionKeyMissing   = errors.New("session key missing")
	ErrSessionBusy         = errors.New("session is handling another request")
	ErrUpstreamUnavailable = errors.New("ai service unavailable")
	ErrProtocolParse       = errors.New("structured payload not decodable")
)
