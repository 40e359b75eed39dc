// Package common contains shared constants and sentinel errors used across
// Taskio components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "taskio.v1.Taskio"

// RefreshTokenBytes is the number of random bytes behind an opaque refresh token.
const RefreshTokenBytes = 32
