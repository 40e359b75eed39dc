// Package client is a Go client for the Taskio gRPC endpoint.
//
// GRPCClient manages a connection, injects the access token into every call,
// transparently refreshes an expired access token once per call, and maps
// gRPC status codes to sentinel errors (ErrUnauthorized, ErrUnavailable).
// Typed helpers cover the common operations; Call reaches any method.
package client
