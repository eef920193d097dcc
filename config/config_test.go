package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

// =============================================================================
// Merge Semantics Tests
// =============================================================================

func TestMergeInheritsGlobalField(t *testing.T) {
	cfg := &Config{
		Connection: Connection{
			ClientID:          ptr("root"),
			DefaultPublishQoS: ptr(1),
		},
		Clients: map[string]*Connection{"edge": {}},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	for _, p := range profiles {
		if p.DefaultPublishQoS != 1 {
			t.Errorf("client %q qos = %d, want inherited 1", p.ClientID, p.DefaultPublishQoS)
		}
	}
}

func TestMergeClientFieldOverrides(t *testing.T) {
	cfg := &Config{
		Clients: map[string]*Connection{
			"edge": {DefaultPublishQoS: ptr(2)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 1 || profiles[0].DefaultPublishQoS != 2 {
		t.Errorf("profiles = %+v, want single profile with qos 2", profiles)
	}
}

func TestMergeHardDefaults(t *testing.T) {
	cfg := &Config{Connection: Connection{ClientID: ptr("root")}}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	p := profiles[0]

	if len(p.URIs) != 1 || p.URIs[0] != DefaultURI {
		t.Errorf("uris = %v, want [%s]", p.URIs, DefaultURI)
	}
	if p.DefaultPublishQoS != 0 {
		t.Errorf("qos = %d, want 0", p.DefaultPublishQoS)
	}
	if p.MaxReconnectDelay != 60*time.Second {
		t.Errorf("max reconnect delay = %v, want 60s", p.MaxReconnectDelay)
	}
	if p.KeepAlive != 60*time.Second {
		t.Errorf("keep alive = %v, want 60s", p.KeepAlive)
	}
	if p.ConnectTimeout != 30*time.Second {
		t.Errorf("connect timeout = %v, want 30s", p.ConnectTimeout)
	}
	if !p.CleanSession || !p.AutomaticReconnect || !p.SharedSubscription {
		t.Errorf("boolean defaults = (%v, %v, %v), want all true",
			p.CleanSession, p.AutomaticReconnect, p.SharedSubscription)
	}
	if p.Will != nil {
		t.Errorf("will = %+v, want nil", p.Will)
	}
}

func TestMergeExplicitFalseWins(t *testing.T) {
	cfg := &Config{
		Connection: Connection{CleanSession: ptr(true)},
		Clients: map[string]*Connection{
			"edge": {CleanSession: ptr(false)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if profiles[0].CleanSession {
		t.Error("explicit clean_session: false lost to the inherited value")
	}
}

// =============================================================================
// Will Merge Tests
// =============================================================================

func TestWillMergesFieldByField(t *testing.T) {
	cfg := &Config{
		Connection: Connection{
			Will: &Will{Topic: ptr("status/offline"), QoS: ptr(1)},
		},
		Clients: map[string]*Connection{
			"edge": {Will: &Will{Payload: ptr("gone"), Retained: ptr(true)}},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	w := profiles[0].Will
	if w == nil {
		t.Fatal("will = nil, want merged will")
	}
	if w.Topic != "status/offline" || string(w.Payload) != "gone" || w.QoS != 1 || !w.Retained {
		t.Errorf("will = %+v, want field-by-field merge", w)
	}
}

func TestWillTakenWholeFromSingleSide(t *testing.T) {
	cfg := &Config{
		Clients: map[string]*Connection{
			"edge": {Will: &Will{Topic: ptr("status/offline"), Payload: ptr("gone")}},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if profiles[0].Will == nil {
		t.Fatal("will = nil, want the record's will")
	}
	if profiles[0].Will.Topic != "status/offline" {
		t.Errorf("will topic = %q, want status/offline", profiles[0].Will.Topic)
	}
}

func TestWillDroppedWithoutTopicAndPayload(t *testing.T) {
	cfg := &Config{
		Connection: Connection{
			ClientID: ptr("root"),
			Will:     &Will{Topic: ptr("status/offline"), QoS: ptr(1)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if profiles[0].Will != nil {
		t.Errorf("will = %+v, want nil for missing payload", profiles[0].Will)
	}
}

// =============================================================================
// Client Id Reconciliation Tests
// =============================================================================

func TestDeclaredClientIDRekeysRecord(t *testing.T) {
	cfg := &Config{
		Clients: map[string]*Connection{
			"alias": {ClientID: ptr("real-id"), DefaultPublishQoS: ptr(2)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 1 || profiles[0].ClientID != "real-id" {
		t.Errorf("profiles = %+v, want single profile keyed real-id", profiles)
	}
	if profiles[0].DefaultPublishQoS != 2 {
		t.Errorf("qos = %d, want the record's qos 2", profiles[0].DefaultPublishQoS)
	}
}

func TestLastRegistrationWinsOnCollision(t *testing.T) {
	cfg := &Config{
		Clients: map[string]*Connection{
			"a": {ClientID: ptr("shared"), DefaultPublishQoS: ptr(1)},
			"b": {ClientID: ptr("shared"), DefaultPublishQoS: ptr(2)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("len(profiles) = %d, want 1", len(profiles))
	}
	// Keys iterate sorted, so record "b" registers last.
	if profiles[0].DefaultPublishQoS != 2 {
		t.Errorf("qos = %d, want the later registration's 2", profiles[0].DefaultPublishQoS)
	}
}

func TestClientRecordShadowsDefaultProfile(t *testing.T) {
	cfg := &Config{
		Connection: Connection{
			ClientID:          ptr("root"),
			DefaultPublishQoS: ptr(1),
		},
		Clients: map[string]*Connection{
			"root": {DefaultPublishQoS: ptr(2)},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("len(profiles) = %d, want 1", len(profiles))
	}
	if profiles[0].ClientID != "root" || profiles[0].DefaultPublishQoS != 2 {
		t.Errorf("profile = %+v, want shadowing record's qos 2", profiles[0])
	}
}

func TestProfileOrderRootFirstThenLexical(t *testing.T) {
	cfg := &Config{
		Connection: Connection{ClientID: ptr("zzz-root")},
		Clients: map[string]*Connection{
			"bbb": {},
			"aaa": {},
		},
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	var got []string
	for _, p := range profiles {
		got = append(got, p.ClientID)
	}
	want := []string{"zzz-root", "aaa", "bbb"}
	if len(got) != len(want) {
		t.Fatalf("profile ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("profile[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
enabled: true
client_id: root
uri:
  - tcp://broker.local:1883
username: svc
password: secret
clients:
  edge:
    default_publish_qos: 1
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Enabled {
		t.Error("enabled = false, want true")
	}
	if cfg.ClientID == nil || *cfg.ClientID != "root" {
		t.Errorf("client_id = %v, want root", cfg.ClientID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q, want default json", cfg.Logging.Format)
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len(profiles) = %d, want 2", len(profiles))
	}
	if profiles[1].Username != "svc" || profiles[1].DefaultPublishQoS != 1 {
		t.Errorf("edge profile = %+v, want inherited username and qos 1", profiles[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want read failure")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "client_id: from-file\nuri: [tcp://file:1883]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	t.Setenv("MQTTBIND_CLIENT_ID", "from-env")
	t.Setenv("MQTTBIND_URI", "tcp://env:1883,ssl://env:8883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClientID == nil || *cfg.ClientID != "from-env" {
		t.Errorf("client_id = %v, want env override", cfg.ClientID)
	}
	if len(cfg.URI) != 2 || cfg.URI[0] != "tcp://env:1883" {
		t.Errorf("uri = %v, want env list", cfg.URI)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestValidateRejectsBadQoS(t *testing.T) {
	cfg := &Config{
		Connection: Connection{
			ClientID:          ptr("root"),
			DefaultPublishQoS: ptr(3),
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil, want qos range failure")
	}
}

func TestValidateRejectsEnabledWithoutClients(t *testing.T) {
	cfg := &Config{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil, want missing client failure")
	}
}

func TestProfilesRejectsEmptyURI(t *testing.T) {
	cfg := &Config{
		Connection: Connection{ClientID: ptr("root"), URI: []string{}},
		Clients: map[string]*Connection{
			"edge": {URI: nil},
		},
	}
	// Empty slices fall back to the default uri, so this resolves fine.
	if _, err := cfg.Profiles(); err != nil {
		t.Errorf("Profiles() error = %v, want fallback to default uri", err)
	}
}
