// FieldGrid Core - Device Connectivity and Telemetry Platform
//
// This is the main entry point for the FieldGrid Core service: the
// WebSocket/MQTT ingestion core that field devices register with and
// dashboards subscribe to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/fieldgrid/fieldgrid-core/migrations"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/gateway"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/config"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/database"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/influxdb"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/mqtt"
	"github.com/fieldgrid/fieldgrid-core/internal/session"
	"github.com/fieldgrid/fieldgrid-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FieldGrid Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Storage layers
	deviceRepo := device.NewSQLiteRepository(db.DB)
	telemetryStore := telemetry.NewSQLiteStore(db.DB)

	// Connect to InfluxDB (optional time-series mirror)
	var influxClient *influxdb.Client
	var mirror gateway.MetricMirror
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Core wiring: registry, hub, pipeline, coordinator
	registry := session.NewRegistry()
	hub := gateway.NewHub(log)
	pipeline := telemetry.NewPipeline(telemetryStore, log)

	coord := gateway.NewCoordinator(gateway.CoordinatorDeps{
		Registry: registry,
		Repo:     deviceRepo,
		Pipeline: pipeline,
		Hub:      hub,
		Closer:   hub,
		Mirror:   mirror,
		Logger:   log,
	})

	// Stale-session reaper
	reaper := gateway.NewReaper(deviceRepo, registry, hub, log,
		cfg.Liveness.Interval(), cfg.Liveness.Threshold())
	go reaper.Run(ctx)

	// MQTT ingest bridge (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := gateway.NewBridge(mqttClient, coord, byte(cfg.MQTT.QoS), log)
		if bridgeErr := bridge.Start(); bridgeErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", bridgeErr)
		}
	} else {
		log.Info("MQTT ingest bridge disabled")
	}

	// Gateway server
	server := gateway.NewServer(gateway.ServerDeps{
		Config:      cfg,
		Logger:      log,
		Hub:         hub,
		Coordinator: coord,
		Credentials: gateway.NewCredentialChecker(cfg.Security.JWTSecret),
		DB:          db,
	})
	defer func() {
		log.Info("stopping gateway")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("FieldGrid Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FIELDGRID_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FIELDGRID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
