// GhostTube bridge.
//
// This is the main entry point of the GhostTube bridge. It exposes the
// video player running on a TV as a Home Assistant media player over MQTT:
//   - the playback host connects to the built-in agent over WebSocket
//   - playback state is published to the broker with MQTT discovery
//   - media player commands from the hub are relayed back to the host
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ghosttube/internal/agent"
	"github.com/nerrad567/ghosttube/internal/bridge"
	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
	"github.com/nerrad567/ghosttube/internal/infrastructure/influxdb"
	"github.com/nerrad567/ghosttube/internal/infrastructure/logging"
	"github.com/nerrad567/ghosttube/internal/infrastructure/mqtt"
	"github.com/nerrad567/ghosttube/internal/session"
	"github.com/nerrad567/ghosttube/internal/visibility"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

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

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting GhostTube bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	topics, err := hass.BuildTopics(cfg.Device.StatePrefix, cfg.Device.ID, cfg.Device.AppName)
	if err != nil {
		return fmt.Errorf("building topics: %w", err)
	}
	discovery, err := hass.NewDiscovery(topics, cfg.Device.ID, cfg.Device.Name, version).Payload()
	if err != nil {
		return fmt.Errorf("building discovery payload: %w", err)
	}

	// Telemetry is optional; an unreachable server is not fatal.
	recorder := connectTelemetry(cfg, log)
	if recorder != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := recorder.client.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	bus := visibility.NewBus(false)

	var checks map[string]agent.HealthChecker
	if recorder != nil {
		checks = map[string]agent.HealthChecker{"influxdb": recorder.client}
	}

	agentSrv, err := agent.New(agent.Deps{
		Config:       cfg.Agent,
		Logger:       log.With("component", "agent"),
		Visibility:   bus,
		HealthChecks: checks,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating playback agent: %w", err)
	}
	if cfg.Agent.Auth.Secret == "" {
		log.Warn("agent host authentication disabled, any client may connect as the playback host")
	}

	mqttOpts := mqtt.OptionsFromConfig(cfg.MQTT)
	mqttOpts.Logger = log.With("component", "mqtt")
	reconnectBase, reconnectMax := cfg.GetReconnectDelays()

	conn, err := bridge.NewConnectionManager(bridge.ManagerOptions{
		Topics:           topics,
		Discovery:        discovery,
		Dial:             bridge.MQTTDialer(mqttOpts),
		BrokerURL:        mqttOpts.BrokerURL(),
		QoS:              byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		ReconnectBase:    reconnectBase,
		ReconnectMax:     reconnectMax,
		PositionInterval: cfg.GetPositionInterval(),
		Notifier:         agentSrv,
		Logger:           log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating connection manager: %w", err)
	}

	// No host is attached yet, so the device starts out hidden.
	conn.OnVisibilityChange(bus.Visible())
	unsubscribe := bus.Subscribe(conn.OnVisibilityChange)
	defer unsubscribe()

	var stateRecorder session.StateRecorder
	if recorder != nil {
		stateRecorder = recorder
		conn.OnStatusChange(func(s bridge.ConnectionState) {
			recorder.RecordConnectionStatus(string(s.Status), s.LastError)
		})
	}

	coordinator, err := session.NewCoordinator(session.Options{
		Connection: conn,
		Source:     agentSrv,
		Navigation: agentSrv,
		Visibility: bus,
		Recorder:   stateRecorder,
		Logger:     log.With("component", "session"),
	})
	if err != nil {
		return fmt.Errorf("creating session coordinator: %w", err)
	}
	agentSrv.SetStatusSources(conn, coordinator)

	if err := agentSrv.Start(ctx); err != nil {
		return fmt.Errorf("starting playback agent: %w", err)
	}
	defer func() {
		if closeErr := agentSrv.Close(); closeErr != nil {
			log.Error("error closing playback agent", "error", closeErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	coordinatorDone := make(chan struct{})

	g.Go(func() error {
		defer close(coordinatorDone)
		return coordinator.Run(gctx)
	})

	g.Go(func() error {
		// A failed first attempt is retried in the background.
		if err := conn.Connect(); err != nil {
			log.Warn("initial MQTT connection failed", "error", err)
		}
		<-gctx.Done()

		// Let the coordinator publish its final idle state first.
		<-coordinatorDone
		log.Info("disconnecting from MQTT")
		conn.Disconnect()
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal",
		"device_id", cfg.Device.ID,
		"broker", mqttOpts.BrokerURL(),
		"agent", agentSrv.Addr(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("GhostTube bridge stopped")
	return nil
}

// telemetry pairs the InfluxDB client with its device recorder.
type telemetry struct {
	*influxdb.Recorder
	client *influxdb.Client
}

// connectTelemetry connects to InfluxDB when enabled. It returns nil when
// telemetry is disabled or unavailable.
func connectTelemetry(cfg *config.Config, log *logging.Logger) *telemetry {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable, running without telemetry", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	return &telemetry{
		Recorder: influxdb.NewRecorder(client, cfg.Device.ID),
		client:   client,
	}
}

// getConfigPath returns the configuration file path.
// Uses GHOSTTUBE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GHOSTTUBE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
