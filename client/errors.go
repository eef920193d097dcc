package client

import "errors"

// Domain-specific errors for broker operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations before Start
	// or on a disconnected client.
	ErrNotConnected = errors.New("client: not connected")

	// ErrConnectionFailed is returned when an initial connection attempt fails.
	ErrConnectionFailed = errors.New("client: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("client: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("client: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("client: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("client: topic cannot be empty")

	// ErrUnknownClient is returned when a publish names a client id that
	// resolved to no connection profile.
	ErrUnknownClient = errors.New("client: unknown client id")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("client: already started")
)
