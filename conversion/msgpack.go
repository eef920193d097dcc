package conversion

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is an opt-in structured-object codec using MessagePack
// encoding instead of the JSON fallback.
//
// Register it for payloads where binary framing matters:
//
//	registry.RegisterCodec(conversion.Msgpack{})
//
// Strings and raw byte slices are left to the built-in UTF-8 path so
// text payloads stay readable on the wire.
type Msgpack struct{}

// CanSerialize accepts every type except the text/raw forms handled by
// the built-in fallback.
func (Msgpack) CanSerialize(t reflect.Type) bool {
	return t.Kind() != reflect.String && t != bytesType
}

// Serialize encodes the value as MessagePack.
func (Msgpack) Serialize(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: msgpack: %v", ErrConversion, err)
	}
	return data, nil
}

// CanDeserialize mirrors CanSerialize.
func (Msgpack) CanDeserialize(t reflect.Type) bool {
	return t.Kind() != reflect.String && t != bytesType
}

// Deserialize decodes MessagePack data into a value of exactly type t.
func (Msgpack) Deserialize(data []byte, t reflect.Type) (any, error) {
	target := t
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	value := reflect.New(target)
	if err := msgpack.Unmarshal(data, value.Interface()); err != nil {
		return nil, fmt.Errorf("%w: msgpack: %v", ErrConversion, err)
	}
	if t.Kind() == reflect.Pointer {
		return value.Interface(), nil
	}
	return value.Elem().Interface(), nil
}
