// Package client talks to the remote sync endpoint over gRPC.
//
// GRPCClient attaches the device token to every call, probes reachability
// with the standard gRPC health check and maps status codes to sentinel
// errors (ErrUnavailable, ErrRejected, ErrUnauthorized,
// common.ErrorNotFound) that callers match with errors.Is.
package client
