package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lonwern/mqttbind/config"
	"github.com/lonwern/mqttbind/conversion"
	"github.com/lonwern/mqttbind/subscriber"
)

// Manager owns one broker connection per resolved configuration profile
// and bridges incoming messages into the subscriber registry.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Hook fields must be set before Start and not modified afterwards.
type Manager struct {
	cfg      *config.Config
	registry *subscriber.Registry
	conv     *conversion.Registry
	logger   *slog.Logger

	// BeforeResolve runs after profiles resolve and before the registry
	// seals. It may register late subscribers or veto startup.
	BeforeResolve func(*subscriber.Registry) error

	// BeforeConnect runs for each profile with the paho options about to
	// be used, allowing transport-level adjustments (TLS, stores).
	BeforeConnect func(config.Profile, *pahomqtt.ClientOptions)

	// BeforeSubscribe runs for each profile with the filters derived for
	// it; the returned slice replaces them.
	BeforeSubscribe func(clientID string, filters []subscriber.Filter) []subscriber.Filter

	resolver func(string) string

	mu      sync.RWMutex
	conns   map[string]*connection
	order   []string
	started bool
}

// connection pairs one paho client with its resolved profile and the
// transport filters it subscribes to.
type connection struct {
	profile config.Profile
	client  pahomqtt.Client
	filters []subscriber.Filter
}

// NewManager creates a Manager over the given configuration and
// registry. The conversion registry serializes publish payloads; nil
// falls back to a default registry. A nil logger discards output.
func NewManager(cfg *config.Config, registry *subscriber.Registry, conv *conversion.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if conv == nil {
		conv = conversion.NewRegistry(logger)
	}
	return &Manager{
		cfg:      cfg,
		registry: registry,
		conv:     conv,
		logger:   logger,
		conns:    make(map[string]*connection),
	}
}

// SetResolver installs the placeholder resolver applied when the
// registry seals. Must be called before Start.
func (m *Manager) SetResolver(resolver func(string) string) {
	m.resolver = resolver
}

// Start resolves the configuration, seals the registry, and connects
// every profile.
//
// When the configuration is disabled Start logs and returns nil without
// connecting. Connections are opened in profile order; the first
// profile is the default publish target. A connection failure closes
// any connections already opened and returns the error.
//
// Returns:
//   - error: If profile resolution, registry sealing, or a connection fails
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	if !m.cfg.Enabled {
		m.logger.Info("engine disabled, skipping broker connections")
		return nil
	}

	profiles, err := m.cfg.Profiles()
	if err != nil {
		return fmt.Errorf("resolving profiles: %w", err)
	}
	if len(profiles) == 0 {
		m.logger.Warn("no connection profiles configured")
		return nil
	}

	if m.BeforeResolve != nil {
		if err := m.BeforeResolve(m.registry); err != nil {
			return fmt.Errorf("before-resolve hook: %w", err)
		}
	}
	if !m.registry.Resolved() {
		if err := m.registry.Resolve(m.resolver); err != nil {
			return fmt.Errorf("sealing registry: %w", err)
		}
	}

	for _, profile := range profiles {
		conn, err := m.connect(profile)
		if err != nil {
			m.Close()
			return err
		}
		m.mu.Lock()
		m.conns[profile.ClientID] = conn
		m.order = append(m.order, profile.ClientID)
		m.mu.Unlock()

		m.logger.Info("broker connection established",
			"client_id", profile.ClientID,
			"uris", profile.URIs,
			"filters", len(conn.filters),
		)
	}
	return nil
}

// connect opens one broker connection for a profile. Subscriptions are
// established by the on-connect handler, which also runs on every
// reconnect paho performs.
func (m *Manager) connect(profile config.Profile) (*connection, error) {
	filters, err := m.registry.Filters(profile.ClientID, profile.SharedSubscription)
	if err != nil {
		return nil, err
	}
	if m.BeforeSubscribe != nil {
		filters = m.BeforeSubscribe(profile.ClientID, filters)
	}

	conn := &connection{profile: profile, filters: filters}

	opts := buildClientOptions(profile)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		m.subscribeAll(conn)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		m.logger.Warn("broker connection lost",
			"client_id", profile.ClientID,
			"error", err,
		)
	})
	if m.BeforeConnect != nil {
		m.BeforeConnect(profile, opts)
	}

	conn.client = pahomqtt.NewClient(opts)
	token := conn.client.Connect()
	if !token.WaitTimeout(profile.ConnectTimeout) {
		return nil, fmt.Errorf("%w: client %q: timeout after %v",
			ErrConnectionFailed, profile.ClientID, profile.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: client %q: %w", ErrConnectionFailed, profile.ClientID, err)
	}
	return conn, nil
}

// subscribeAll subscribes a connection to its derived filters. Runs on
// initial connect and on every reconnect.
func (m *Manager) subscribeAll(conn *connection) {
	handler := m.messageHandler(conn.profile.ClientID)
	for _, f := range conn.filters {
		token := conn.client.Subscribe(f.Topic, f.QoS, handler)
		go func(f subscriber.Filter) {
			if !token.WaitTimeout(defaultSubscribeTimeout) {
				m.logger.Error("subscribe timed out",
					"client_id", conn.profile.ClientID,
					"filter", f.Topic,
				)
				return
			}
			if err := token.Error(); err != nil {
				m.logger.Error("subscribe failed",
					"client_id", conn.profile.ClientID,
					"filter", f.Topic,
					"error", err,
				)
			}
		}(f)
	}
	m.logger.Debug("subscriptions established",
		"client_id", conn.profile.ClientID,
		"count", len(conn.filters),
	)
}

// messageHandler adapts paho deliveries into registry dispatches for
// one client. Panic isolation happens per handler inside the registry.
func (m *Manager) messageHandler(clientID string) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, raw pahomqtt.Message) {
		msg := &subscriber.Message{
			Topic:     raw.Topic(),
			Payload:   raw.Payload(),
			QoS:       raw.Qos(),
			Retained:  raw.Retained(),
			Duplicate: raw.Duplicate(),
		}
		m.registry.Dispatch(clientID, raw.Topic(), msg)
	}
}

// Close disconnects every connection, leaving a quiesce period for
// pending operations. Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*connection)
	m.order = nil
	m.mu.Unlock()

	for id, conn := range conns {
		if conn.client != nil && conn.client.IsConnected() {
			conn.client.Disconnect(defaultDisconnectQuiesce)
		}
		m.logger.Info("broker connection closed", "client_id", id)
	}
	return nil
}

// HealthCheck verifies every managed connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error naming the first unhealthy client
func (m *Manager) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("health check: %w", ctx.Err())
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return ErrNotConnected
	}
	for _, id := range m.order {
		if conn := m.conns[id]; conn == nil || !conn.client.IsConnected() {
			return fmt.Errorf("%w: client %q", ErrNotConnected, id)
		}
	}
	return nil
}

// ClientIDs returns the connected client ids in profile order. The
// first id is the default publish target.
func (m *Manager) ClientIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}
