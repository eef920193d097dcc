package client

import (
	"fmt"
)

// Maximum payload size for published messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20

// PublishOption adjusts a single publish operation.
type PublishOption func(*publishOptions)

type publishOptions struct {
	clientID string
	qos      *byte
	retained bool
}

// WithClient publishes through the named connection instead of the
// default (first) profile.
func WithClient(clientID string) PublishOption {
	return func(o *publishOptions) { o.clientID = clientID }
}

// WithQoS overrides the connection's default publish QoS.
func WithQoS(qos byte) PublishOption {
	return func(o *publishOptions) { o.qos = &qos }
}

// WithRetained marks the message retained, so the broker stores it for
// new subscribers. Use for state topics, not commands or events.
func WithRetained(retained bool) PublishOption {
	return func(o *publishOptions) { o.retained = retained }
}

// Publish sends a message to the specified topic.
//
// The payload is serialized through the conversion registry: []byte and
// string pass through untouched, everything else goes through the
// registered serializers (JSON by default). Delivery is asynchronous -
// Publish returns once the message is handed to the transport, and the
// broker acknowledgment is confirmed in the background with failures
// logged.
//
// Parameters:
//   - topicStr: The topic to publish to
//   - payload: The message payload (raw bytes, string, or any serializable value)
//   - opts: Optional per-publish overrides (WithClient, WithQoS, WithRetained)
//
// Returns:
//   - error: nil once handed to the transport, or a validation/state error
//
// Example:
//
//	err := manager.Publish("device/kitchen/command",
//	    Command{Action: "dim", Level: 40},
//	    client.WithQoS(1))
func (m *Manager) Publish(topicStr string, payload any, opts ...PublishOption) error {
	if topicStr == "" {
		return ErrInvalidTopic
	}

	var po publishOptions
	for _, opt := range opts {
		opt(&po)
	}

	m.mu.RLock()
	var conn *connection
	if po.clientID != "" {
		conn = m.conns[po.clientID]
	} else if len(m.order) > 0 {
		conn = m.conns[m.order[0]]
	}
	m.mu.RUnlock()

	if conn == nil {
		if po.clientID != "" {
			return fmt.Errorf("%w: %q", ErrUnknownClient, po.clientID)
		}
		return ErrNotConnected
	}

	qos := conn.profile.DefaultPublishQoS
	if po.qos != nil {
		qos = *po.qos
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	var data []byte
	if payload != nil {
		data = m.conv.Serialize(payload)
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(data), maxPayloadSize)
	}

	if !conn.client.IsConnected() {
		return ErrNotConnected
	}

	token := conn.client.Publish(topicStr, qos, po.retained, data)
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			m.logger.Warn("publish confirmation timed out",
				"client_id", conn.profile.ClientID,
				"topic", topicStr,
			)
			return
		}
		if err := token.Error(); err != nil {
			m.logger.Warn("publish failed",
				"client_id", conn.profile.ClientID,
				"topic", topicStr,
				"error", err,
			)
		}
	}()
	return nil
}
