package subscriber

import "errors"

// Domain-specific errors for subscription handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidHandler is returned when a handler is not a usable
	// function (nil, not a func, or variadic).
	ErrInvalidHandler = errors.New("subscriber: invalid handler")

	// ErrInvalidSpec is returned when a subscription spec is malformed,
	// for example declaring more params than the handler accepts or no
	// topics at all.
	ErrInvalidSpec = errors.New("subscriber: invalid spec")

	// ErrMissingParameter signals that a required parameter could not be
	// bound for one message. The invocation is skipped; this is not an
	// application fault.
	ErrMissingParameter = errors.New("subscriber: required parameter not resolvable")

	// ErrResolved is returned when the registry is mutated after
	// Resolve() has sealed it.
	ErrResolved = errors.New("subscriber: registry already resolved")

	// ErrNotResolved is returned when subscription filters are requested
	// before Resolve() has compiled the topic patterns.
	ErrNotResolved = errors.New("subscriber: registry not resolved")
)
