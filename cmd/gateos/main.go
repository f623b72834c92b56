// GateOS - residential gate and door access backend.
//
// This is the main entry point for the GateOS server. It wires the
// SQLite store, the MQTT broker connection, the command relay and the
// HTTP API together, and shuts everything down cleanly on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/LGEEEEEE/GateOS/migrations"

	"github.com/LGEEEEEE/GateOS/internal/api"
	"github.com/LGEEEEEE/GateOS/internal/audit"
	"github.com/LGEEEEEE/GateOS/internal/auth"
	"github.com/LGEEEEEE/GateOS/internal/device"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/config"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/database"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/influxdb"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/logging"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/mqtt"
	"github.com/LGEEEEEE/GateOS/internal/relay"
	"github.com/LGEEEEEE/GateOS/internal/tenant"
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

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting GateOS",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Domain services
	tenantRepo := tenant.NewSQLiteRepository(db.DB)
	principalRepo := auth.NewSQLiteRepository(db.DB)
	authService := auth.NewService(tenantRepo, principalRepo,
		cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)

	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)

	auditLog := audit.NewLog(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional status telemetry)
	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server; the relay needs its WebSocket hub as a status sink,
	// so the relay is created first and the hub attached after Start.
	commandRelay := relay.New(registry, auditLog, mqttClient, mqttClient, log)

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		AuthService: authService,
		Registry:    registry,
		AuditLog:    auditLog,
		Relay:       commandRelay,
		Broker:      mqttClient,
		Database:    db,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	commandRelay.AttachSink(server.Hub())
	if influxClient != nil {
		commandRelay.AttachSink(influxClient)
	}

	// Start the inbound status subscription
	if err := commandRelay.Start(ctx); err != nil {
		return fmt.Errorf("starting command relay: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GATEOS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GATEOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
