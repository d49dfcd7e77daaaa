// Overlay Core - marathon running-order service
//
// overlaycore keeps the running order of an event, drives the OBS overlay
// on every transition and serves the operator API and live feed.
//
// Commands arrive over HTTP, WebSocket and (when enabled) MQTT. State is
// published back to MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/overlay-core/internal/api"
	"github.com/nerrad567/overlay-core/internal/app"
	"github.com/nerrad567/overlay-core/internal/auth"
	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/logging"
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

// mqttCommandTimeout bounds one MQTT command, overlay sync included.
const mqttCommandTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Overlay Core",
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

	a, err := app.Open(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing services")
		a.Close()
	}()

	if _, err := auth.SeedAdmin(ctx, a.Operators, log); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	if a.MQTT != nil {
		if err := a.Director.Listen(a.MQTT, mqttCommandTimeout); err != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", err)
		}
		log.Info("listening for MQTT commands", "topic_prefix", cfg.MQTT.TopicPrefix)
	}

	if err := healthCheck(ctx, checks(a)); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	srv, err := newServer(cfg, log, a)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API server, then services.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses OVERLAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OVERLAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newServer(cfg *config.Config, log *logging.Logger, a *app.App) (*api.Server, error) {
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.With("component", "api"),
		Director:    a.Director,
		Operators:   a.Operators,
		Audit:       a.Audit,
		AuditWriter: a.AuditWriter,
		Health:      checks(a),
		Version:     version,
	}
	// Interface fields stay nil when OBS is disabled.
	if a.OBS != nil {
		deps.OBS = a.OBS
	}
	if a.Overlay != nil {
		deps.Scenes = a.Overlay
	}
	return api.New(deps)
}

// checks lists the health of every connected service.
func checks(a *app.App) map[string]api.HealthChecker {
	m := map[string]api.HealthChecker{"database": a.DB}
	if a.MQTT != nil {
		m["mqtt"] = a.MQTT
	}
	if a.Influx != nil {
		m["influxdb"] = a.Influx
	}
	if a.OBS != nil {
		m["obs"] = a.OBS
	}
	return m
}

// healthCheck verifies the services the timeline cannot run without. OBS
// is left out: it may come up after the service and is reported by
// /health instead.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		c, ok := checks[name]
		if !ok {
			continue
		}
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
