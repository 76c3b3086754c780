package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the smart fridge controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Latch      LatchConfig      `yaml:"latch"`
	Buzzer     BuzzerConfig     `yaml:"buzzer"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// DeviceConfig identifies this appliance on the bus and in telemetry.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite event log settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays bounds the local event log. 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// CommandWaitMS is how long a lock/unlock request waits for the latch
	// outcome before answering with the transitioning state.
	CommandWaitMS int `yaml:"command_wait_ms"`

	// PanelDir serves the operator page from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Hardware driver kinds shared by the sensor, latch and buzzer sections.
const (
	DriverMQTT      = "mqtt"
	DriverSimulated = "simulated"
)

// SensorConfig controls the temperature/humidity sampling loop.
type SensorConfig struct {
	// Source is "mqtt" (sensor bridge on the bus) or "simulated".
	Source    string `yaml:"source"`
	PeriodMS  int    `yaml:"period_ms"`
	TimeoutMS int    `yaml:"timeout_ms"`

	// Simulated holds the baseline for the simulated source.
	Simulated SimulatedSensorConfig `yaml:"simulated"`
}

// SimulatedSensorConfig seeds the simulated sensor.
type SimulatedSensorConfig struct {
	TemperatureC float64 `yaml:"temperature_c"`
	HumidityPct  float64 `yaml:"humidity_pct"`
	Jitter       float64 `yaml:"jitter"`
}

// LatchConfig controls the door latch actuator.
type LatchConfig struct {
	Driver           string `yaml:"driver"`
	ConfirmTimeoutMS int    `yaml:"confirm_timeout_ms"`

	// TravelMS is the simulated mechanical travel time.
	TravelMS int `yaml:"travel_ms"`
}

// BuzzerConfig controls the audible alarm output.
type BuzzerConfig struct {
	Driver           string `yaml:"driver"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

// ThresholdsConfig defines the safe envelope. Readings outside it sound the alarm.
type ThresholdsConfig struct {
	TemperatureMaxC float64 `yaml:"temperature_max_c"`
	TemperatureMinC float64 `yaml:"temperature_min_c"`
	HumidityMaxPct  float64 `yaml:"humidity_max_pct"`
	Hysteresis      float64 `yaml:"hysteresis"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMARTFRIDGE_SECTION_KEY
// For example: SMARTFRIDGE_DATABASE_PATH, SMARTFRIDGE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// Default returns the built-in configuration. Useful for tests and for
// running the simulated bench setup without a config file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "fridge-001",
			Name: "Geladeira Inteligente",
		},
		Database: DatabaseConfig{
			Path:                 "./data/smartfridge.db",
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smartfridge-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			CommandWaitMS: 1500,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sensor: SensorConfig{
			Source:    DriverMQTT,
			PeriodMS:  2000,
			TimeoutMS: 1000,
			Simulated: SimulatedSensorConfig{
				TemperatureC: 4.0,
				HumidityPct:  55.0,
				Jitter:       0.3,
			},
		},
		Latch: LatchConfig{
			Driver:           DriverMQTT,
			ConfirmTimeoutMS: 1000,
			TravelMS:         300,
		},
		Buzzer: BuzzerConfig{
			Driver:           DriverMQTT,
			CommandTimeoutMS: 500,
		},
		Thresholds: ThresholdsConfig{
			TemperatureMaxC: 8.0,
			TemperatureMinC: -2.0,
			HumidityMaxPct:  80.0,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMARTFRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMARTFRIDGE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("SMARTFRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SMARTFRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SMARTFRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SMARTFRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SMARTFRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SMARTFRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("SMARTFRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SMARTFRIDGE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days cannot be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.CommandWaitMS < 0 {
		errs = append(errs, "api.command_wait_ms cannot be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.validateHardware()...)
	errs = append(errs, c.validateThresholds()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateHardware checks the sensor, latch and buzzer sections.
func (c *Config) validateHardware() []string {
	var errs []string

	if !validDriver(c.Sensor.Source) {
		errs = append(errs, "sensor.source must be mqtt or simulated")
	}
	if c.Sensor.PeriodMS <= 0 {
		errs = append(errs, "sensor.period_ms must be positive")
	}
	if c.Sensor.TimeoutMS <= 0 {
		errs = append(errs, "sensor.timeout_ms must be positive")
	} else if c.Sensor.TimeoutMS >= c.Sensor.PeriodMS {
		errs = append(errs, "sensor.timeout_ms must be shorter than sensor.period_ms")
	}

	if !validDriver(c.Latch.Driver) {
		errs = append(errs, "latch.driver must be mqtt or simulated")
	}
	if c.Latch.ConfirmTimeoutMS <= 0 {
		errs = append(errs, "latch.confirm_timeout_ms must be positive")
	}

	if !validDriver(c.Buzzer.Driver) {
		errs = append(errs, "buzzer.driver must be mqtt or simulated")
	}

	// Any hardware on the bus needs the bus.
	usesMQTT := c.Sensor.Source == DriverMQTT || c.Latch.Driver == DriverMQTT || c.Buzzer.Driver == DriverMQTT
	if usesMQTT && !c.MQTT.Enabled {
		errs = append(errs, "mqtt must be enabled when a hardware driver uses mqtt")
	}

	return errs
}

// validateThresholds checks the alarm envelope.
func (c *Config) validateThresholds() []string {
	var errs []string
	t := c.Thresholds

	if t.TemperatureMinC >= t.TemperatureMaxC {
		errs = append(errs, "thresholds.temperature_min_c must be below temperature_max_c")
	}
	if t.HumidityMaxPct <= 0 || t.HumidityMaxPct > 100 {
		errs = append(errs, "thresholds.humidity_max_pct must be in (0, 100]")
	}
	if t.Hysteresis < 0 {
		errs = append(errs, "thresholds.hysteresis cannot be negative")
	}

	return errs
}

func validDriver(kind string) bool {
	return kind == DriverMQTT || kind == DriverSimulated
}

// ReadTimeout returns the HTTP read timeout.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the HTTP keep-alive idle timeout.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// CommandWait returns how long lock/unlock handlers wait for an outcome.
func (a APIConfig) CommandWait() time.Duration {
	return time.Duration(a.CommandWaitMS) * time.Millisecond
}

// SamplePeriod returns the sensor sampling period.
func (c *Config) SamplePeriod() time.Duration {
	return time.Duration(c.Sensor.PeriodMS) * time.Millisecond
}

// SampleTimeout returns the bound on a single sensor read.
func (c *Config) SampleTimeout() time.Duration {
	return time.Duration(c.Sensor.TimeoutMS) * time.Millisecond
}

// LatchConfirmTimeout returns how long the latch may take to confirm a move.
func (c *Config) LatchConfirmTimeout() time.Duration {
	return time.Duration(c.Latch.ConfirmTimeoutMS) * time.Millisecond
}

// LatchTravel returns the simulated latch travel time.
func (c *Config) LatchTravel() time.Duration {
	return time.Duration(c.Latch.TravelMS) * time.Millisecond
}

// BuzzerCommandTimeout bounds a single buzzer driver write.
func (c *Config) BuzzerCommandTimeout() time.Duration {
	return time.Duration(c.Buzzer.CommandTimeoutMS) * time.Millisecond
}

// HistoryRetention returns how long events stay in the local log.
// Zero keeps everything.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetentionDays) * 24 * time.Hour
}
