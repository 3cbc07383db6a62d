// Package common contains shared constants and sentinel errors used across
// gutscan components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the device
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName is an optional metadata key the client sets so server
// logs can be correlated per device.
const DeviceIDHeaderName = "device_id"
