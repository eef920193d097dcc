package client

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lonwern/mqttbind/config"
)

// Connection constants.
const (
	// defaultPublishTimeout bounds the background publish confirmation.
	defaultPublishTimeout = 5 * time.Second

	// defaultSubscribeTimeout bounds each subscribe acknowledgment.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations
	// on disconnect, in milliseconds.
	defaultDisconnectQuiesce = 1000

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// buildClientOptions creates paho options from a resolved profile.
//
// This configures:
//   - Broker endpoints (every uri in the profile, tried in order)
//   - Client ID for identification
//   - Authentication credentials (only when both are provided)
//   - Auto-reconnect with capped backoff
//   - Clean session mode
//   - Last Will and Testament (if the profile carries one)
func buildClientOptions(p config.Profile) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	for _, uri := range p.URIs {
		opts.AddBroker(uri)
	}

	opts.SetClientID(p.ClientID)

	// Credentials apply only as a pair.
	if p.Username != "" && p.Password != "" {
		opts.SetUsername(p.Username)
		opts.SetPassword(p.Password)
	}

	opts.SetCleanSession(p.CleanSession)

	opts.SetAutoReconnect(p.AutomaticReconnect)
	opts.SetConnectRetry(p.AutomaticReconnect)
	opts.SetMaxReconnectInterval(p.MaxReconnectDelay)

	opts.SetConnectTimeout(p.ConnectTimeout)

	// Keepalive - broker PINGs detect dead connections.
	opts.SetKeepAlive(p.KeepAlive)

	if p.Will != nil {
		opts.SetBinaryWill(p.Will.Topic, p.Will.Payload, p.Will.QoS, p.Will.Retained)
	}

	return opts
}
