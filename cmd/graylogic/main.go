// Gray Logic Automation - area automation controller
//
// This is the main entry point for the Gray Logic automation service.
// It turns bridge sensor state into domain events, runs the configured
// area automations against them and commands actuators over MQTT:
//   - Motion-driven lighting (conditional_on, turn_on_and_off)
//   - Daylight and temperature driven shutters (roller_shutter)
//   - Operator REST API, WebSocket event stream and Prometheus metrics
//
// Startup order follows the dependency graph; shutdown runs in reverse
// through the defer chain.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-automation/migrations"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/api"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/environment"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automation/internal/ingest"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
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
	log.Info("starting Gray Logic Automation",
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

	// Open database
	db, err := database.Open(ctx, database.Config{
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
	mqttClient.SetLogger(log.Component("mqtt"))
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

	// Connect to InfluxDB (optional)
	influxClient, err := connectInflux(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	busMetrics, err := bus.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering bus metrics: %w", err)
	}
	automationMetrics, err := automation.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering automation metrics: %w", err)
	}

	// Diagnostics journal
	journalOpts := []diagnostics.Option{diagnostics.WithCapacity(cfg.Automation.DiagnosticsCapacity)}
	if influxClient != nil {
		journalOpts = append(journalOpts, diagnostics.WithRecorder(influxClient))
	}
	journal := diagnostics.NewJournal(log.Component("diagnostics"), journalOpts...)

	// Event bus
	eventBus := bus.New(
		bus.WithLogger(log.Component("bus")),
		bus.WithReporter(journal),
		bus.WithMetrics(busMetrics),
	)
	defer func() {
		log.Info("closing event bus")
		eventBus.Close()
	}()

	sched := scheduler.New()
	sched.SetLogger(log.Component("scheduler"))
	defer func() {
		log.Info("stopping scheduler", "pending", sched.Pending())
		sched.Close()
	}()

	// Actuators
	sink := actuator.NewMQTTSink(mqttClient, actuatorsFromConfig(cfg.Actuators))
	sink.SetLogger(log.Component("actuator"))
	sink.SetNotifier(eventBus)
	log.Info("actuators loaded", "count", len(cfg.Actuators))

	// Automations
	repo := automation.NewSQLiteRepository(db.DB)
	engine := automation.NewEngine(eventBus, sink, sched, journal, repo, log.Component("automation"))
	engine.SetMetrics(automationMetrics)
	engine.SetCommandTimeout(config.Seconds(cfg.Automation.CommandTimeout))
	engine.SetTriggerObserver(triggerExporter(mqttClient, timeSeries(influxClient), log))
	defer func() {
		log.Info("stopping automation engine")
		engine.Close()
	}()

	factory := automation.NewFactory(sink, cfg.Location(), automation.Defaults{
		Cooldown:       config.Seconds(cfg.Automation.DefaultCooldown),
		ShutterSpacing: config.Seconds(cfg.Automation.ShutterSpacing),
		OpenNotBefore:  cfg.Automation.OpenNotBefore,
	})
	if err := registerAreas(engine, factory, cfg.Areas); err != nil {
		return err
	}
	log.Info("automations registered", "count", len(engine.List()))

	tokens, err := startExporters(eventBus, mqttClient, timeSeries(influxClient), log)
	if err != nil {
		return err
	}
	defer func() {
		for _, t := range tokens {
			eventBus.Unsubscribe(t)
		}
	}()

	if retention := cfg.Automation.TriggerRetentionDays; retention > 0 {
		handle, schedErr := scheduleRetention(ctx, sched, repo, retention, journal)
		if schedErr != nil {
			return schedErr
		}
		defer sched.Cancel(handle) //nolint:errcheck // scheduler closes on shutdown anyway
	}

	// Inputs: bridge state, clock ticks and daylight
	ingestor, err := ingest.NewMQTTIngest(mqttClient, eventBus, sensorsFromConfig(cfg.Sensors))
	if err != nil {
		return fmt.Errorf("creating ingest: %w", err)
	}
	ingestor.SetLogger(log.Component("ingest"))
	if err := ingestor.Start(ctx); err != nil {
		return fmt.Errorf("starting ingest: %w", err)
	}
	defer func() {
		stats := ingestor.Stats()
		log.Info("stopping ingest", "received", stats.Received, "published", stats.Published)
		if stopErr := ingestor.Stop(); stopErr != nil {
			log.Warn("error stopping ingest", "error", stopErr)
		}
	}()

	clock := environment.NewClock(config.Seconds(cfg.Automation.TickInterval), eventBus, sched)
	clock.SetLogger(log.Component("clock"))
	if err := clock.Start(ctx); err != nil {
		return fmt.Errorf("starting clock: %w", err)
	}
	defer clock.Stop() //nolint:errcheck // best-effort on shutdown

	daylight := environment.NewDaylight(environment.DaylightConfig{
		Latitude:      cfg.Site.Location.Latitude,
		Longitude:     cfg.Site.Location.Longitude,
		Location:      cfg.Location(),
		SunriseOffset: config.Minutes(cfg.Automation.Daylight.SunriseOffset),
		SunsetOffset:  config.Minutes(cfg.Automation.Daylight.SunsetOffset),
		CheckInterval: config.Seconds(cfg.Automation.Daylight.CheckInterval),
	}, eventBus, sched)
	daylight.SetLogger(log.Component("daylight"))
	if err := daylight.Start(ctx); err != nil {
		return fmt.Errorf("starting daylight: %w", err)
	}
	defer daylight.Stop() //nolint:errcheck // best-effort on shutdown

	// API server
	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.Component("api"),
			Automations: engine,
			Actuators:   sink,
			Diagnostics: journal,
			Bus:         eventBus,
			Gatherer:    registry,
			Registerer:  registry,
			Checks:      checks,
			Version:     version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
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
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	//nolint:errcheck // retained status is best-effort
	mqttClient.Publish(mqtt.Topics{}.SystemStatus(), []byte(`{"status":"online"}`), 1, true)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	//nolint:errcheck // retained status is best-effort
	mqttClient.Publish(mqtt.Topics{}.SystemStatus(), []byte(`{"status":"offline"}`), 1, true)

	log.Info("Gray Logic Automation stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux connects to InfluxDB when enabled.
//
// Returns:
//   - *influxdb.Client: connected client, or nil when disabled
//   - error: if enabled but unreachable
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	switch {
	case err == nil:
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// healthCheck verifies every infrastructure connection is healthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
