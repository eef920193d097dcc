package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern MQTTBIND_KEY, for example
// MQTTBIND_URI or MQTTBIND_PASSWORD, and apply to the default profile.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. Connection
// fields stay nil on purpose - the merge engine distinguishes absent
// from explicitly set.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// default profile.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTTBIND_URI"); v != "" {
		cfg.URI = strings.Split(v, ",")
	}
	if v := os.Getenv("MQTTBIND_CLIENT_ID"); v != "" {
		cfg.ClientID = &v
	}
	if v := os.Getenv("MQTTBIND_USERNAME"); v != "" {
		cfg.Username = &v
	}
	if v := os.Getenv("MQTTBIND_PASSWORD"); v != "" {
		cfg.Password = &v
	}
	if v := os.Getenv("MQTTBIND_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks the configuration for errors before profile
// resolution.
//
// Returns:
//   - error: Description of validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	check := func(where string, record *Connection) {
		if record.DefaultPublishQoS != nil && (*record.DefaultPublishQoS < 0 || *record.DefaultPublishQoS > maxQoS) {
			errs = append(errs, where+".default_publish_qos must be 0, 1, or 2")
		}
		if record.Will != nil && record.Will.QoS != nil && (*record.Will.QoS < 0 || *record.Will.QoS > maxQoS) {
			errs = append(errs, where+".will.qos must be 0, 1, or 2")
		}
	}

	check("mqtt", &c.Connection)
	for _, key := range sortedKeys(c.Clients) {
		if record := c.Clients[key]; record != nil {
			check("clients."+key, record)
		}
	}

	if c.Enabled && len(c.Clients) == 0 && (c.ClientID == nil || *c.ClientID == "") {
		errs = append(errs, "enabled without any client_id or clients entry")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
