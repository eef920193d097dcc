package conversion

import "errors"

// Errors reported by converters. These are logged by the Registry rather
// than returned to dispatch call sites; custom converter implementations
// should wrap ErrConversion so log output stays greppable.
var (
	// ErrConversion is the base error for serialize/deserialize failures.
	ErrConversion = errors.New("conversion: failed")

	// ErrUnsupported is returned by Convert when no converter accepts
	// the source/target type pair.
	ErrUnsupported = errors.New("conversion: unsupported type pair")
)
