package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lonwern/mqttbind/config"
	"github.com/lonwern/mqttbind/subscriber"
)

func ptr[T any](v T) *T { return &v }

func testManager(cfg *config.Config) *Manager {
	return NewManager(cfg, subscriber.NewRegistry(nil, nil), nil, nil)
}

// =============================================================================
// Start Tests
// =============================================================================

func TestStartDisabledIsNoOp(t *testing.T) {
	m := testManager(&config.Config{Enabled: false})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if ids := m.ClientIDs(); len(ids) != 0 {
		t.Errorf("ClientIDs() = %v, want none while disabled", ids)
	}
}

func TestStartTwice(t *testing.T) {
	m := testManager(&config.Config{Enabled: false})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartRejectsInvalidProfiles(t *testing.T) {
	cfg := &config.Config{
		Enabled: true,
		Connection: config.Connection{
			ClientID:          ptr("root"),
			DefaultPublishQoS: ptr(7),
		},
	}

	if err := testManager(cfg).Start(); err == nil {
		t.Error("Start() error = nil, want profile validation failure")
	}
}

func TestBeforeResolveHookVetoesStartup(t *testing.T) {
	cfg := &config.Config{
		Enabled:    true,
		Connection: config.Connection{ClientID: ptr("root")},
	}
	m := testManager(cfg)

	hookErr := errors.New("not ready")
	m.BeforeResolve = func(_ *subscriber.Registry) error { return hookErr }

	err := m.Start()
	if !errors.Is(err, hookErr) {
		t.Errorf("Start() error = %v, want the hook's error", err)
	}
}

// =============================================================================
// Publish Validation Tests
// =============================================================================

func TestPublishEmptyTopic(t *testing.T) {
	m := testManager(&config.Config{})

	if err := m.Publish("", []byte("x")); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishBeforeStart(t *testing.T) {
	m := testManager(&config.Config{})

	if err := m.Publish("test/abc", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishUnknownClient(t *testing.T) {
	m := testManager(&config.Config{})

	err := m.Publish("test/abc", []byte("x"), WithClient("ghost"))
	if !errors.Is(err, ErrUnknownClient) {
		t.Errorf("Publish() error = %v, want ErrUnknownClient", err)
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheckWithoutConnections(t *testing.T) {
	m := testManager(&config.Config{})

	if err := m.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	m := testManager(&config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Option Building Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	p := config.Profile{
		ClientID:           "edge-1",
		URIs:               []string{"tcp://a:1883", "ssl://b:8883"},
		Username:           "svc",
		Password:           "secret",
		DefaultPublishQoS:  1,
		MaxReconnectDelay:  30 * time.Second,
		KeepAlive:          45 * time.Second,
		ConnectTimeout:     5 * time.Second,
		CleanSession:       false,
		AutomaticReconnect: true,
		SharedSubscription: true,
		Will: &config.WillProfile{
			Topic:    "status/edge-1",
			Payload:  []byte("offline"),
			QoS:      1,
			Retained: true,
		},
	}

	opts := buildClientOptions(p)

	if len(opts.Servers) != 2 {
		t.Fatalf("len(Servers) = %d, want 2", len(opts.Servers))
	}
	if opts.Servers[1].Scheme != "ssl" {
		t.Errorf("Servers[1].Scheme = %q, want ssl", opts.Servers[1].Scheme)
	}
	if opts.ClientID != "edge-1" {
		t.Errorf("ClientID = %q, want edge-1", opts.ClientID)
	}
	if opts.Username != "svc" || opts.Password != "secret" {
		t.Errorf("credentials = (%q, %q), want (svc, secret)", opts.Username, opts.Password)
	}
	if opts.CleanSession {
		t.Error("CleanSession = true, want false")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
	if opts.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", opts.ConnectTimeout)
	}
	if opts.WillTopic != "status/edge-1" || string(opts.WillPayload) != "offline" {
		t.Errorf("will = (%q, %q), want profile will", opts.WillTopic, opts.WillPayload)
	}
	if opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will flags = (%d, %v), want (1, true)", opts.WillQos, opts.WillRetained)
	}
}

func TestBuildClientOptionsCredentialGating(t *testing.T) {
	p := config.Profile{
		ClientID: "edge-1",
		URIs:     []string{"tcp://a:1883"},
		Username: "svc", // password missing
	}

	opts := buildClientOptions(p)

	// Credentials only apply as a pair.
	if opts.Username != "" || opts.Password != "" {
		t.Errorf("credentials = (%q, %q), want none", opts.Username, opts.Password)
	}
}

func TestBuildClientOptionsWithoutWill(t *testing.T) {
	p := config.Profile{
		ClientID: "edge-1",
		URIs:     []string{"tcp://a:1883"},
	}

	opts := buildClientOptions(p)

	if opts.WillEnabled {
		t.Error("WillEnabled = true, want false")
	}
}
