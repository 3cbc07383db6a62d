package client

import "errors"

var (
	// ErrUnavailable is transient: the endpoint could not be reached or did
	// not answer in time. The call may be retried.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the device token was refused.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected means the endpoint refused the payload itself.
	ErrRejected = errors.New("rejected by server")
)
