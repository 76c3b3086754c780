package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/nerrad567/smart-fridge/migrations"

	"github.com/nerrad567/smart-fridge/internal/api"
	"github.com/nerrad567/smart-fridge/internal/buzzer"
	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/history"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/config"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/database"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/logging"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/smart-fridge/internal/latch"
	"github.com/nerrad567/smart-fridge/internal/sensor"
	"github.com/nerrad567/smart-fridge/internal/telemetry"
)

const (
	// eventQueueSize is the fan-out buffer between the controller loop and
	// the slow sinks (SQLite, MQTT, InfluxDB, WebSocket).
	eventQueueSize = 128

	// startupCheckTimeout bounds the infrastructure health check at boot.
	startupCheckTimeout = 5 * time.Second
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting smart fridge controller",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the event log
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

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)

	store := history.NewStore(db.DB)

	// Connect to MQTT broker (optional when every driver is simulated)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
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
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
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
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	hw, err := buildHardware(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	// Event fan-out: every controller event goes to the local log, the
	// WebSocket hub and, when configured, the bus and InfluxDB.
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	sinks := []telemetry.Sink{telemetry.NewHistorySink(store), hub.Sink()}
	if mqttClient != nil {
		sinks = append(sinks, telemetry.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
	}
	if influxClient != nil {
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
	}
	fanout := telemetry.NewFanout(eventQueueSize, log.With("component", "telemetry"), sinks...)

	ctrl, err := fridge.NewController(fridge.Options{
		Thresholds: thresholdsFromConfig(cfg.Thresholds),
		Latch:      hw.actuator,
		Buzzer:     hw.buzzer,
		Notifier:   fanout,
		Logger:     log.With("component", "controller"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	// Actuator callbacks post onto the controller loop. They run on the
	// actuator's own goroutines, never inside Lock or Unlock.
	hw.actuator.SetOnComplete(func(c fridge.LatchCompletion) {
		if err := ctrl.HandleLatchCompletion(ctx, c); err != nil {
			log.Debug("latch completion dropped", "command_id", c.CommandID, "error", err)
		}
	})
	hw.actuator.SetOnPosition(func(pos fridge.LockState) {
		if err := ctrl.HandleLatchFeedback(ctx, pos); err != nil {
			log.Debug("latch position dropped", "position", pos, "error", err)
		}
	})

	reader, err := sensor.NewReader(sensor.Options{
		Source:  hw.source,
		Sink:    ctrl,
		Period:  cfg.SamplePeriod(),
		Timeout: cfg.SampleTimeout(),
		Logger:  log.With("component", "sensor"),
	})
	if err != nil {
		return fmt.Errorf("creating sensor reader: %w", err)
	}

	pruner := history.NewPruner(store, cfg.HistoryRetention(), history.DefaultPruneInterval, log.With("component", "history"))

	// Background loops. Each returns once ctx is cancelled; on an early
	// return below they are stopped before the database closes.
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	runLoop := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("background loop failed", "loop", name, "error", err)
			}
		}()
	}

	runLoop("telemetry", fanout.Run)
	runLoop("controller", ctrl.Run)
	runLoop("websocket", func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	})

	hw.buzzer.Start(ctx)
	if err := hw.actuator.Start(ctx); err != nil {
		return fmt.Errorf("starting latch actuator: %w", err)
	}
	if hw.mqttSource != nil {
		if err := hw.mqttSource.Start(ctx); err != nil {
			return fmt.Errorf("starting sensor source: %w", err)
		}
	}

	runLoop("sensor", reader.Run)
	runLoop("history", pruner.Run)

	// HTTP API and operator page
	checks := map[string]api.HealthChecker{"database": db}
	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		Controller: ctrl,
		History:    store,
		Hub:        hub,
		Checks:     checks,
		Sensor:     reader,
		Events:     fanout,
		Buzzer:     hw.buzzer,
		Database:   db,
		Version:    version,
	}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, checks); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr(),
		"sensor", cfg.Sensor.Source,
		"latch", cfg.Latch.Driver,
		"buzzer", cfg.Buzzer.Driver,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}

	wg.Wait()

	// Leave the buzzer off, stop waiting on the latch and drop the bus
	// subscriptions. The deferred closes then run in reverse order:
	// InfluxDB, MQTT, database.
	hw.buzzer.Stop()
	if err := hw.actuator.Close(); err != nil {
		log.Error("error closing latch actuator", "error", err)
	}
	hw.unsubscribe(log)

	log.Info("smart fridge controller stopped")
	return nil
}

// hardware groups the device drivers chosen by configuration.
type hardware struct {
	source     sensor.Source
	mqttSource *sensor.MQTTSource // set when the sensor is on the bus
	mqttLatch  *latch.MQTTDriver  // set when the latch is on the bus
	actuator   *latch.Actuator
	buzzer     *buzzer.Output
}

// unsubscribe drops the sensor and latch bus subscriptions so no handler
// runs against components that are shutting down.
func (hw *hardware) unsubscribe(log *logging.Logger) {
	if hw.mqttSource != nil {
		if err := hw.mqttSource.Stop(); err != nil {
			log.Warn("error stopping sensor source", "error", err)
		}
	}
	if hw.mqttLatch != nil {
		if err := hw.mqttLatch.Stop(); err != nil {
			log.Warn("error stopping latch driver", "error", err)
		}
	}
}

// buildHardware creates the sensor source, latch actuator and buzzer output
// for the configured drivers.
//
// Parameters:
//   - cfg: Application configuration
//   - mqttClient: Connected bus client, nil when MQTT is disabled
//   - log: Logger instance
//
// Returns:
//   - *hardware: Drivers ready to start
//   - error: If a driver needs MQTT and none is connected, or a component rejects its options
func buildHardware(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (*hardware, error) {
	needsBus := func(what string) error {
		if mqttClient == nil {
			return fmt.Errorf("%s driver %q requires MQTT", what, config.DriverMQTT)
		}
		return nil
	}

	hw := &hardware{}

	switch cfg.Sensor.Source {
	case config.DriverMQTT:
		if err := needsBus("sensor"); err != nil {
			return nil, err
		}
		hw.mqttSource = sensor.NewMQTTSource(mqttClient, mqttClient.Topics(), mqttClient.QoS())
		hw.source = hw.mqttSource
	default:
		sim := cfg.Sensor.Simulated
		hw.source = sensor.NewSimulatedSource(sim.TemperatureC, sim.HumidityPct, sim.Jitter)
	}

	var latchDriver latch.Driver
	switch cfg.Latch.Driver {
	case config.DriverMQTT:
		if err := needsBus("latch"); err != nil {
			return nil, err
		}
		hw.mqttLatch = latch.NewMQTTDriver(mqttClient, mqttClient.Topics(), mqttClient.QoS())
		latchDriver = hw.mqttLatch
	default:
		latchDriver = latch.NewSimulatedDriver(cfg.LatchTravel(), fridge.LockUnlocked)
	}

	actuator, err := latch.NewActuator(latch.Options{
		Driver:         latchDriver,
		ConfirmTimeout: cfg.LatchConfirmTimeout(),
		Logger:         log.With("component", "latch"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating latch actuator: %w", err)
	}
	hw.actuator = actuator

	var buzzerDriver buzzer.Driver
	switch cfg.Buzzer.Driver {
	case config.DriverMQTT:
		if err := needsBus("buzzer"); err != nil {
			return nil, err
		}
		buzzerDriver = buzzer.NewMQTTDriver(mqttClient, mqttClient.Topics(), mqttClient.QoS())
	default:
		buzzerDriver = buzzer.NewSimulatedDriver()
	}

	out, err := buzzer.NewOutput(buzzer.Options{
		Driver:         buzzerDriver,
		CommandTimeout: cfg.BuzzerCommandTimeout(),
		Logger:         log.With("component", "buzzer"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating buzzer output: %w", err)
	}
	hw.buzzer = out

	return hw, nil
}

func thresholdsFromConfig(t config.ThresholdsConfig) fridge.Thresholds {
	return fridge.Thresholds{
		TemperatureMaxC: t.TemperatureMaxC,
		TemperatureMinC: t.TemperatureMinC,
		HumidityMaxPct:  t.HumidityMaxPct,
		Hysteresis:      t.Hysteresis,
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
