package subscriber

// Message is a raw MQTT message as delivered by the transport.
//
// A handler parameter declared as Message (or *Message) receives it
// directly, bypassing all conversion. Dispatch may run with a nil
// message for synthetic invocations; payload binding steps are skipped
// in that case.
type Message struct {
	// Topic the message was delivered on (wildcards expanded, never
	// carrying a $queue/ or $share/ prefix).
	Topic string

	// Payload is the raw message body.
	Payload []byte

	// QoS the message was delivered with.
	QoS byte

	// Retained reports whether the broker replayed a retained message.
	Retained bool

	// Duplicate reports a possible redelivery (QoS 1).
	Duplicate bool
}
