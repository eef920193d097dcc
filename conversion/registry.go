package conversion

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"sync"
)

var (
	stringType = reflect.TypeOf("")
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Serializer converts handler values into payload bytes.
type Serializer interface {
	// CanSerialize reports whether this serializer accepts the type.
	CanSerialize(t reflect.Type) bool

	// Serialize encodes the value. Implementations should wrap
	// ErrConversion on failure.
	Serialize(v any) ([]byte, error)
}

// Deserializer converts payload bytes into handler values.
type Deserializer interface {
	// CanDeserialize reports whether this deserializer produces the type.
	CanDeserialize(t reflect.Type) bool

	// Deserialize decodes the payload into a value of exactly type t.
	Deserialize(data []byte, t reflect.Type) (any, error)
}

// ValueConverter converts between in-memory values, used for turning
// extracted topic segments (strings) into typed handler parameters.
type ValueConverter interface {
	// CanConvert reports whether this converter handles the type pair.
	CanConvert(from, to reflect.Type) bool

	// Convert produces a value of exactly type to.
	Convert(v any, to reflect.Type) (any, error)
}

// Registry is the pluggable byte/value conversion service.
//
// Custom serializers, deserializers and value converters are consulted
// in registration order before the built-in fallbacks. Registration
// happens at startup; Serialize/Deserialize/Convert are safe for
// concurrent use afterwards.
type Registry struct {
	mu            sync.RWMutex
	serializers   []Serializer
	deserializers []Deserializer
	converters    []ValueConverter
	logger        *slog.Logger
}

// NewRegistry creates a Registry with the built-in fallbacks only.
//
// A nil logger discards conversion failure logs.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{logger: logger}
}

// RegisterSerializer appends a custom serializer. Earlier registrations
// win when several accept the same type.
func (r *Registry) RegisterSerializer(s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers = append(r.serializers, s)
}

// RegisterDeserializer appends a custom deserializer.
func (r *Registry) RegisterDeserializer(d Deserializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deserializers = append(r.deserializers, d)
}

// RegisterConverter appends a custom value converter, consulted before
// the built-in string-to-scalar conversions.
func (r *Registry) RegisterConverter(c ValueConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters = append(r.converters, c)
}

// RegisterCodec registers a combined Serializer/Deserializer in one call.
func (r *Registry) RegisterCodec(codec interface {
	Serializer
	Deserializer
}) {
	r.RegisterSerializer(codec)
	r.RegisterDeserializer(codec)
}

// Serialize encodes a value for publishing.
//
// Custom serializers run first, then the built-in fallback: []byte
// passes through, strings become UTF-8 text, anything else is JSON
// encoded. Failures are logged and reported as a nil result - callers
// treat nil as "no payload available", never as a fault to propagate.
func (r *Registry) Serialize(v any) []byte {
	if v == nil {
		return nil
	}

	r.mu.RLock()
	serializers := r.serializers
	r.mu.RUnlock()

	t := reflect.TypeOf(v)
	for _, s := range serializers {
		if !s.CanSerialize(t) {
			continue
		}
		data, err := s.Serialize(v)
		if err != nil {
			r.logger.Warn("payload serialization failed", "type", t.String(), "error", err)
			return nil
		}
		return data
	}

	switch value := v.(type) {
	case []byte:
		return value
	case string:
		return []byte(value)
	}

	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("payload serialization failed",
			"type", t.String(),
			"error", fmt.Errorf("%w: %v", ErrConversion, err),
		)
		return nil
	}
	return data
}

// Deserialize decodes a payload into a value of type t.
//
// String targets short-circuit to UTF-8 decoding. Otherwise custom
// deserializers run first, then the JSON fallback. Failures are logged
// and reported as a nil result, which the parameter binder resolves
// through required/default markers.
func (r *Registry) Deserialize(data []byte, t reflect.Type) any {
	if data == nil || t == nil {
		return nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(string(data)).Convert(t).Interface()
	}
	if t == bytesType {
		return data
	}

	r.mu.RLock()
	deserializers := r.deserializers
	r.mu.RUnlock()

	for _, d := range deserializers {
		if !d.CanDeserialize(t) {
			continue
		}
		v, err := d.Deserialize(data, t)
		if err != nil {
			r.logger.Warn("payload deserialization failed", "type", t.String(), "error", err)
			return nil
		}
		return v
	}

	target := t
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	value := reflect.New(target)
	if err := json.Unmarshal(data, value.Interface()); err != nil {
		r.logger.Warn("payload deserialization failed",
			"type", t.String(),
			"error", fmt.Errorf("%w: %v", ErrConversion, err),
		)
		return nil
	}
	if t.Kind() == reflect.Pointer {
		return value.Interface()
	}
	return value.Elem().Interface()
}

// CanConvert reports whether Convert can produce type to from type from.
//
// Used by the parameter binder to decide whether an extracted topic
// segment can feed a non-string parameter.
func (r *Registry) CanConvert(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from == to {
		return true
	}

	r.mu.RLock()
	converters := r.converters
	r.mu.RUnlock()

	for _, c := range converters {
		if c.CanConvert(from, to) {
			return true
		}
	}
	if from.Kind() == reflect.String {
		return scalarKind(to.Kind())
	}
	return false
}

// Convert produces a value of exactly type to.
//
// Custom value converters run first; the built-in path covers string
// sources into scalar targets via strconv.
func (r *Registry) Convert(v any, to reflect.Type) (any, error) {
	from := reflect.TypeOf(v)
	if from == to {
		return v, nil
	}

	r.mu.RLock()
	converters := r.converters
	r.mu.RUnlock()

	for _, c := range converters {
		if c.CanConvert(from, to) {
			return c.Convert(v, to)
		}
	}

	if from != nil && from.Kind() == reflect.String {
		return convertString(reflect.ValueOf(v).String(), to)
	}
	return nil, fmt.Errorf("%w: %v to %v", ErrUnsupported, from, to)
}

// scalarKind reports whether a kind is reachable from a string source
// through the built-in strconv path.
func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertString parses a string into a scalar value of exactly type to.
func convertString(s string, to reflect.Type) (any, error) {
	value := reflect.New(to).Elem()
	switch to.Kind() {
	case reflect.String:
		value.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %v: %v", ErrConversion, s, to, err)
		}
		value.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %v: %v", ErrConversion, s, to, err)
		}
		value.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %v: %v", ErrConversion, s, to, err)
		}
		value.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %v: %v", ErrConversion, s, to, err)
		}
		value.SetFloat(f)
	default:
		return nil, fmt.Errorf("%w: string to %v", ErrUnsupported, to)
	}
	return value.Interface(), nil
}
