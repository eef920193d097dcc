package config

import (
	"fmt"
	"sort"
	"time"
)

// Hard defaults applied when neither the default profile nor a client
// record sets a field.
const (
	// DefaultURI is the broker endpoint assumed when none is configured.
	DefaultURI = "tcp://127.0.0.1:1883"

	// DefaultPublishQoS is the QoS for publishes without an explicit level.
	DefaultPublishQoS = 0

	// DefaultMaxReconnectDelay caps the reconnect backoff (seconds).
	DefaultMaxReconnectDelay = 60

	// DefaultKeepAliveInterval is the keepalive ping interval (seconds).
	DefaultKeepAliveInterval = 60

	// DefaultConnectionTimeout bounds the initial connect (seconds).
	DefaultConnectionTimeout = 30

	// DefaultExecutorTimeout bounds callback executor shutdown (seconds).
	DefaultExecutorTimeout = 10

	maxQoS = 2
)

// Will configures a Last Will and Testament message. All fields are
// optional; a will is only applied when both topic and payload resolve
// to non-empty values.
type Will struct {
	Topic    *string `yaml:"topic"`
	Payload  *string `yaml:"payload"`
	QoS      *int    `yaml:"qos"`
	Retained *bool   `yaml:"retained"`
}

// Connection is one connection override record. Every field is optional;
// nil means "inherit" - from the default profile for client records, or
// from the hard defaults for the default profile itself.
type Connection struct {
	ClientID           *string  `yaml:"client_id"`
	URI                []string `yaml:"uri"`
	Username           *string  `yaml:"username"`
	Password           *string  `yaml:"password"`
	DefaultPublishQoS  *int     `yaml:"default_publish_qos"`
	MaxReconnectDelay  *int     `yaml:"max_reconnect_delay"`
	KeepAliveInterval  *int     `yaml:"keep_alive_interval"`
	ConnectionTimeout  *int     `yaml:"connection_timeout"`
	ExecutorTimeout    *int     `yaml:"executor_timeout"`
	CleanSession       *bool    `yaml:"clean_session"`
	AutomaticReconnect *bool    `yaml:"automatic_reconnect"`
	SharedSubscription *bool    `yaml:"shared_subscription"`
	Will               *Will    `yaml:"will"`
}

// Config is the root configuration.
//
// The inline Connection acts as the default profile every client record
// inherits from; it also connects itself when it declares a client_id.
type Config struct {
	Connection `yaml:",inline"`

	// Enabled gates the whole engine. When false, Start is a no-op.
	Enabled bool `yaml:"enabled"`

	// Clients maps client id to its override record.
	Clients map[string]*Connection `yaml:"clients"`

	// Logging configures the engine's structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WillProfile is a resolved Last Will and Testament.
type WillProfile struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Profile is one fully resolved client connection. Built once at
// startup, immutable thereafter; reconnection reuses the same profile.
type Profile struct {
	ClientID           string
	URIs               []string
	Username           string
	Password           string
	DefaultPublishQoS  byte
	MaxReconnectDelay  time.Duration
	KeepAlive          time.Duration
	ConnectTimeout     time.Duration
	// ExecutorTimeout is carried for configuration completeness; the Go
	// paho client has no executor-service knob to map it onto.
	ExecutorTimeout    time.Duration
	CleanSession       bool
	AutomaticReconnect bool
	SharedSubscription bool
	Will               *WillProfile
}

// Profiles resolves every configured client into its connection profile.
//
// The default profile participates when it declares a client_id. Client
// records declaring a client_id different from their map key are
// re-keyed to the declared id; the last registration for a resolved id
// wins, and a client record shadows the default profile on id collision.
// Result order is the default profile first, then client ids lexically
// (the first profile is the default publish target).
//
// Returns:
//   - []Profile: Resolved profiles, one per connection to open
//   - error: If a resolved profile fails validation
func (c *Config) Profiles() ([]Profile, error) {
	resolved := make(map[string]*Connection, len(c.Clients))
	for _, key := range sortedKeys(c.Clients) {
		record := c.Clients[key]
		if record == nil {
			record = &Connection{}
		}
		id := key
		if record.ClientID != nil && *record.ClientID != "" {
			id = *record.ClientID
		}
		resolved[id] = record
	}

	var order []string
	rootID := ""
	if c.ClientID != nil && *c.ClientID != "" {
		rootID = *c.ClientID
		order = append(order, rootID)
	}
	for _, id := range sortedKeys(resolved) {
		if id != rootID {
			order = append(order, id)
		}
	}

	profiles := make([]Profile, 0, len(order))
	for _, id := range order {
		record, ok := resolved[id]
		if !ok {
			record = &c.Connection
		}
		p := merge(&c.Connection, record, id)
		if err := p.validate(); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// merge resolves one client record against the default profile: a field
// set on the record wins, an unset field inherits the default profile's
// value, and the hard default applies when both are absent.
func merge(global, record *Connection, clientID string) Profile {
	p := Profile{
		ClientID:           clientID,
		URIs:               mergeSlice(global.URI, record.URI, []string{DefaultURI}),
		Username:           mergeValue(global.Username, record.Username, ""),
		Password:           mergeValue(global.Password, record.Password, ""),
		DefaultPublishQoS:  byte(mergeValue(global.DefaultPublishQoS, record.DefaultPublishQoS, DefaultPublishQoS)),
		MaxReconnectDelay:  seconds(mergeValue(global.MaxReconnectDelay, record.MaxReconnectDelay, DefaultMaxReconnectDelay)),
		KeepAlive:          seconds(mergeValue(global.KeepAliveInterval, record.KeepAliveInterval, DefaultKeepAliveInterval)),
		ConnectTimeout:     seconds(mergeValue(global.ConnectionTimeout, record.ConnectionTimeout, DefaultConnectionTimeout)),
		ExecutorTimeout:    seconds(mergeValue(global.ExecutorTimeout, record.ExecutorTimeout, DefaultExecutorTimeout)),
		CleanSession:       mergeValue(global.CleanSession, record.CleanSession, true),
		AutomaticReconnect: mergeValue(global.AutomaticReconnect, record.AutomaticReconnect, true),
		SharedSubscription: mergeValue(global.SharedSubscription, record.SharedSubscription, true),
	}
	p.Will = mergeWill(global.Will, record.Will)
	return p
}

// mergeWill resolves the will sub-record. Field-by-field inheritance
// only applies when both sides declare a will; otherwise whichever side
// declared one is taken whole. A will without topic and payload is
// dropped.
func mergeWill(global, record *Will) *WillProfile {
	src := record
	if src == nil {
		src = global
	}
	if src == nil {
		return nil
	}

	topic, payload := src.Topic, src.Payload
	qos, retained := src.QoS, src.Retained
	if global != nil && record != nil {
		topic = mergePtr(global.Topic, record.Topic)
		payload = mergePtr(global.Payload, record.Payload)
		qos = mergePtr(global.QoS, record.QoS)
		retained = mergePtr(global.Retained, record.Retained)
	}

	if topic == nil || *topic == "" || payload == nil || *payload == "" {
		return nil
	}
	w := &WillProfile{Topic: *topic, Payload: []byte(*payload)}
	if qos != nil {
		w.QoS = byte(*qos)
	}
	if retained != nil {
		w.Retained = *retained
	}
	return w
}

// mergeValue applies the single-field inheritance rule.
func mergeValue[T any](global, record *T, fallback T) T {
	if record != nil {
		return *record
	}
	if global != nil {
		return *global
	}
	return fallback
}

// mergePtr is mergeValue without a fallback, keeping absence visible.
func mergePtr[T any](global, record *T) *T {
	if record != nil {
		return record
	}
	return global
}

// mergeSlice treats an empty slice as absent.
func mergeSlice(global, record, fallback []string) []string {
	if len(record) > 0 {
		return record
	}
	if len(global) > 0 {
		return global
	}
	return fallback
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validate checks a resolved profile for values the transport would
// reject at connect time.
func (p *Profile) validate() error {
	if p.ClientID == "" {
		return fmt.Errorf("config: empty client id")
	}
	if p.DefaultPublishQoS > maxQoS {
		return fmt.Errorf("config: client %q: default_publish_qos must be 0, 1, or 2", p.ClientID)
	}
	if p.Will != nil && p.Will.QoS > maxQoS {
		return fmt.Errorf("config: client %q: will.qos must be 0, 1, or 2", p.ClientID)
	}
	if len(p.URIs) == 0 {
		return fmt.Errorf("config: client %q: no broker uri", p.ClientID)
	}
	return nil
}
