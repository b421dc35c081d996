package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the automation controller.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Automation AutomationConfig `yaml:"automation"`
	Sensors    []SensorConfig   `yaml:"sensors"`
	Actuators  []ActuatorConfig `yaml:"actuators"`
	Areas      []AreaConfig     `yaml:"areas"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for sunrise and sunset.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect backoff bounds in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
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

// WebSocketConfig contains settings for the live event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
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

// AutomationConfig contains engine-wide automation settings.
type AutomationConfig struct {
	// TickInterval is the clock tick period in seconds.
	TickInterval int `yaml:"tick_interval"`

	// CommandTimeout bounds one actuator command, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// DefaultCooldown applies to lighting rules without their own, in seconds.
	DefaultCooldown int `yaml:"default_cooldown"`

	// ShutterSpacing is the minimum gap between shutter moves, in seconds.
	ShutterSpacing int `yaml:"shutter_spacing"`

	// OpenNotBefore is the earliest "HH:MM" shutters may open.
	OpenNotBefore string `yaml:"open_not_before"`

	Daylight DaylightConfig `yaml:"daylight"`

	// TriggerRetentionDays prunes trigger history older than this. 0 keeps all.
	TriggerRetentionDays int `yaml:"trigger_retention_days"`

	// DiagnosticsCapacity is the size of the in-memory diagnostics ring.
	DiagnosticsCapacity int `yaml:"diagnostics_capacity"`
}

// DaylightConfig tunes sunrise and sunset.
type DaylightConfig struct {
	// SunriseOffset shifts sunrise in minutes (positive = later).
	SunriseOffset int `yaml:"sunrise_offset"`
	// SunsetOffset shifts sunset in minutes (negative = earlier).
	SunsetOffset int `yaml:"sunset_offset"`
	// CheckInterval is how often the phase is recomputed, in seconds.
	CheckInterval int `yaml:"check_interval"`
}

// SensorConfig maps a bridge address to a sensor.
type SensorConfig struct {
	ID       string `yaml:"id"`
	Area     string `yaml:"area"`
	Kind     string `yaml:"kind"` // motion | outdoor_temperature
	Protocol string `yaml:"protocol"`
	Address  string `yaml:"address"`
}

// ActuatorConfig describes one commandable output.
type ActuatorConfig struct {
	ID       string `yaml:"id"`
	Area     string `yaml:"area"`
	Type     string `yaml:"type"` // switch | shutter
	Protocol string `yaml:"protocol"`
	Address  string `yaml:"address"`
	Disabled bool   `yaml:"disabled"`
}

// AreaConfig groups the automations of one area.
type AreaConfig struct {
	Name        string                 `yaml:"name"`
	Automations []AutomationDefinition `yaml:"automations"`
}

// AutomationDefinition configures one automation rule.
type AutomationDefinition struct {
	Flavor    string   `yaml:"flavor"`
	Actuators []string `yaml:"actuators"`
	Cooldown  int      `yaml:"cooldown"` // seconds

	// turn_on_and_off
	From         string `yaml:"from"`
	To           string `yaml:"to"`
	OnlyWhenDark bool   `yaml:"only_when_dark"`

	// roller_shutter
	OpenNotBefore  string  `yaml:"open_not_before"`
	HeatProtection bool    `yaml:"heat_protection"`
	HeatThreshold  float64 `yaml:"heat_threshold"`
}

// Known automation flavors, sensor kinds and actuator types.
var (
	knownFlavors       = []string{"conditional_on", "turn_on_and_off", "roller_shutter"}
	knownSensorKinds   = []string{"motion", "outdoor_temperature"}
	knownActuatorTypes = []string{"switch", "shutter"}
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (GRAYLOGIC_SECTION_KEY)
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

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-automation",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     64,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Automation: AutomationConfig{
			TickInterval:         60,
			CommandTimeout:       5,
			DefaultCooldown:      60,
			ShutterSpacing:       300,
			OpenNotBefore:        "07:00",
			Daylight:             DaylightConfig{CheckInterval: 60},
			TriggerRetentionDays: 30,
			DiagnosticsCapacity:  256,
		},
	}
}

// applyEnvOverrides applies GRAYLOGIC_* environment overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem found.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Site.ID == "" {
		add("site.id is required")
	}
	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			add("site.timezone %q is not a valid IANA zone", c.Site.Timezone)
		}
	}
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		add("site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		add("site.location.longitude must be between -180 and 180")
	}

	if c.Database.Path == "" {
		add("database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		add("mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		add("api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		add("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Automation.TickInterval <= 0 {
		add("automation.tick_interval must be positive")
	}
	if c.Automation.CommandTimeout <= 0 {
		add("automation.command_timeout must be positive")
	}
	if c.Automation.DefaultCooldown < 0 || c.Automation.ShutterSpacing < 0 {
		add("automation cooldowns must not be negative")
	}
	if c.Automation.OpenNotBefore != "" && !validClock(c.Automation.OpenNotBefore) {
		add("automation.open_not_before %q must be HH:MM", c.Automation.OpenNotBefore)
	}

	sensorIDs := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		switch {
		case s.ID == "":
			add("sensors[%d].id is required", i)
		case sensorIDs[s.ID]:
			add("sensors[%d]: duplicate id %q", i, s.ID)
		}
		sensorIDs[s.ID] = true
		if !slices.Contains(knownSensorKinds, s.Kind) {
			add("sensors[%d].kind %q must be one of %s", i, s.Kind, strings.Join(knownSensorKinds, ", "))
		}
		if s.Protocol == "" || s.Address == "" {
			add("sensors[%d]: protocol and address are required", i)
		}
		if s.Kind == "motion" && s.Area == "" {
			add("sensors[%d]: motion sensors need an area", i)
		}
	}

	actuatorIDs := make(map[string]bool, len(c.Actuators))
	for i, a := range c.Actuators {
		switch {
		case a.ID == "":
			add("actuators[%d].id is required", i)
		case actuatorIDs[a.ID]:
			add("actuators[%d]: duplicate id %q", i, a.ID)
		}
		actuatorIDs[a.ID] = true
		if !slices.Contains(knownActuatorTypes, a.Type) {
			add("actuators[%d].type %q must be one of %s", i, a.Type, strings.Join(knownActuatorTypes, ", "))
		}
		if a.Area == "" || a.Protocol == "" || a.Address == "" {
			add("actuators[%d]: area, protocol and address are required", i)
		}
	}

	areaNames := make(map[string]bool, len(c.Areas))
	for i, area := range c.Areas {
		if area.Name == "" {
			add("areas[%d].name is required", i)
		} else if areaNames[area.Name] {
			add("areas[%d]: duplicate name %q", i, area.Name)
		}
		areaNames[area.Name] = true

		flavors := make(map[string]bool, len(area.Automations))
		for j, def := range area.Automations {
			where := fmt.Sprintf("areas[%d].automations[%d]", i, j)
			if !slices.Contains(knownFlavors, def.Flavor) {
				add("%s.flavor %q must be one of %s", where, def.Flavor, strings.Join(knownFlavors, ", "))
			}
			if flavors[def.Flavor] {
				add("%s: area %q already has a %s automation", where, area.Name, def.Flavor)
			}
			flavors[def.Flavor] = true
			for _, id := range def.Actuators {
				if !actuatorIDs[id] {
					add("%s: unknown actuator %q", where, id)
				}
			}
			if def.Cooldown < 0 {
				add("%s.cooldown must not be negative", where)
			}
			if def.Flavor == "turn_on_and_off" && (!validClock(def.From) || !validClock(def.To)) {
				add("%s: from and to must be HH:MM", where)
			}
			if def.OpenNotBefore != "" && !validClock(def.OpenNotBefore) {
				add("%s.open_not_before must be HH:MM", where)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the site time zone.
func (c *Config) Location() *time.Location {
	if c.Site.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Seconds converts a seconds count from the config into a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Minutes converts a minutes count from the config into a Duration.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
