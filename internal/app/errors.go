package service

import "errors"

// Sentinel errors returned by the service. Session and repository errors
// pass through wrapped and keep their own sentinels.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("frame queue full")
	ErrNotStarted   = errors.New("service not started")
)
