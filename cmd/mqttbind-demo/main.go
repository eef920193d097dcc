// mqttbind-demo wires the subscription engine against a live broker.
//
// It loads a configuration file, registers a handful of typed
// subscribers, starts the connection manager, and publishes a test
// reading so the round trip is visible in the logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/lonwern/mqttbind/client"
	"github.com/lonwern/mqttbind/config"
	"github.com/lonwern/mqttbind/conversion"
	"github.com/lonwern/mqttbind/logging"
	"github.com/lonwern/mqttbind/subscriber"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var version = "dev"

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting mqttbind demo", "version", version)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// A generated client id keeps repeated demo runs from kicking each
	// other off the broker.
	if cfg.ClientID == nil || *cfg.ClientID == "" {
		id := "mqttbind-demo-" + uuid.NewString()[:8]
		cfg.ClientID = &id
	}

	conv := conversion.NewRegistry(log.Logger)
	registry := subscriber.NewRegistry(conv, log.Logger)

	if err := registerSubscribers(registry, log); err != nil {
		return fmt.Errorf("registering subscribers: %w", err)
	}

	manager := client.NewManager(cfg, registry, conv, log.Logger)
	manager.SetResolver(config.EnvResolver)

	if err := manager.Start(); err != nil {
		return fmt.Errorf("starting manager: %w", err)
	}
	defer func() {
		log.Info("closing broker connections")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing connections", "error", closeErr)
		}
	}()

	if cfg.Enabled {
		// Publish one reading so the round trip shows up immediately.
		if err := manager.Publish("demo/sensor/42", 23.5, client.WithQoS(1)); err != nil {
			log.Warn("demo publish failed", "error", err)
		}
	}

	log.Info("running, press Ctrl+C to stop")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return nil
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := manager.HealthCheck(checkCtx); err != nil {
				log.Warn("health check failed", "error", err)
			}
			cancel()
		}
	}
}

// registerSubscribers adds the demo's typed handlers.
func registerSubscribers(registry *subscriber.Registry, log *logging.Logger) error {
	sensor, err := subscriber.New(
		func(id string, value float64) {
			log.Info("sensor reading", "id", id, "value", value)
		},
		subscriber.Spec{
			Topics: []string{"demo/sensor/{id}"},
			QoS:    []byte{1},
			Params: []subscriber.Param{{Name: "id"}, {Payload: true}},
		},
	)
	if err != nil {
		return err
	}

	firehose, err := subscriber.New(
		func(msg subscriber.Message) {
			log.Debug("message received", "topic", msg.Topic, "bytes", len(msg.Payload))
		},
		subscriber.Spec{
			Topics:   []string{"demo/#"},
			Priority: 10,
		},
	)
	if err != nil {
		return err
	}

	workqueue, err := subscriber.New(
		func(topic string, payload []byte) {
			log.Info("work item", "topic", topic, "bytes", len(payload))
		},
		subscriber.Spec{
			Topics: []string{"demo/jobs/+"},
			QoS:    []byte{1},
			Shared: []bool{true},
			Params: []subscriber.Param{{}, {Payload: true}},
		},
	)
	if err != nil {
		return err
	}

	for _, s := range []*subscriber.Subscriber{sensor, firehose, workqueue} {
		if err := registry.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MQTTBIND_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MQTTBIND_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
