package subscriber

import (
	"log/slog"
	"reflect"

	"github.com/lonwern/mqttbind/conversion"
	"github.com/lonwern/mqttbind/topic"
)

var (
	messageType    = reflect.TypeOf(Message{})
	messagePtrType = reflect.TypeOf(&Message{})
	stringType     = reflect.TypeOf("")
)

// Param declares the binding markers for one handler parameter, aligned
// by position with the handler's signature. The zero value means "bind
// by declared type only": raw messages and topic strings bind directly,
// anything else attempts payload deserialization.
type Param struct {
	// Name binds the parameter to a named topic segment ({name}).
	Name string

	// Payload marks the parameter as the deserialized message payload.
	Payload bool

	// Required skips the whole invocation when the parameter resolves
	// to no value. Without it, Default (or the zero value) is bound.
	Required bool

	// Default is bound when the parameter resolves to no value and is
	// not required. Must be assignable or convertible to the declared
	// parameter type.
	Default any
}

// param is a fully derived parameter descriptor: the declared type from
// the handler signature plus its binding markers.
type param struct {
	Param
	typ reflect.Type
}

// bind resolves the value for one parameter of one invocation.
//
// The precedence ladder, first hit wins:
//  1. Declared type is the raw message type - bind the message itself.
//  2. Payload-marked with a message present - deserialize the payload.
//  3. Named and the matched pattern extracted that segment - convert the
//     string; unsupported conversions log and leave the value absent.
//  4. Declared type is string - bind the concrete topic.
//  5. A message is present - attempt payload deserialization.
//
// Returns nil when no step produced a value; required/default handling
// happens in the caller.
func (p param) bind(pattern *topic.Pattern, topicStr string, values map[string]string, msg *Message, conv *conversion.Registry, logger *slog.Logger) any {
	var value string
	var hasNamed bool
	if p.Name != "" {
		value, hasNamed = values[p.Name]
	}

	switch {
	case p.typ == messageType:
		if msg != nil {
			return *msg
		}
	case p.typ == messagePtrType:
		if msg != nil {
			return msg
		}
	case p.Payload && msg != nil:
		return conv.Deserialize(msg.Payload, p.typ)
	case hasNamed:
		if !conv.CanConvert(stringType, p.typ) {
			logger.Warn("unsupported conversion for named topic value",
				"name", p.Name,
				"type", p.typ.String(),
				"template", pattern.Template(),
			)
			return nil
		}
		converted, err := conv.Convert(value, p.typ)
		if err != nil {
			logger.Warn("named topic value conversion failed",
				"name", p.Name,
				"value", value,
				"type", p.typ.String(),
				"error", err,
			)
			return nil
		}
		return converted
	case p.typ == stringType:
		return topicStr
	case msg != nil:
		return conv.Deserialize(msg.Payload, p.typ)
	}
	return nil
}

// argValue coerces a resolved value into the declared parameter type.
// Incompatible defaults are logged and replaced by the zero value.
func argValue(v any, typ reflect.Type, logger *slog.Logger) reflect.Value {
	if v == nil {
		return reflect.Zero(typ)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(typ) {
		return rv
	}
	if rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ)
	}
	logger.Warn("value not assignable to parameter type",
		"value_type", rv.Type().String(),
		"param_type", typ.String(),
	)
	return reflect.Zero(typ)
}
