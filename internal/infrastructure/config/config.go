package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ShowSync Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Shows       ShowsConfig                 `yaml:"shows"`
	Controllers map[string]ControllerConfig `yaml:"controllers"`
	WLED        WLEDConfig                  `yaml:"wled"`
	Scheduler   SchedulerConfig             `yaml:"scheduler"`
	Database    DatabaseConfig              `yaml:"database"`
	MQTT        MQTTConfig                  `yaml:"mqtt"`
	API         APIConfig                   `yaml:"api"`
	WebSocket   WebSocketConfig             `yaml:"websocket"`
	InfluxDB    InfluxDBConfig              `yaml:"influxdb"`
	Logging     LoggingConfig               `yaml:"logging"`
	Security    SecurityConfig              `yaml:"security"`
}

// ShowsConfig locates the show timing documents.
type ShowsConfig struct {
	// TimingsPath is the YAML file holding the per-show event timelines.
	TimingsPath string `yaml:"timings_path"`
}

// ControllerConfig describes one logical lighting controller.
// A controller may be backed by several physical devices (URLs) that all
// receive the same directives.
type ControllerConfig struct {
	URLs        []string `yaml:"urls"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
}

// WLEDConfig contains the per-device HTTP timeout budgets.
// All three limits bound a single device call; each must stay within the
// dispatcher's shared deadline so one slow device cannot exceed its share.
type WLEDConfig struct {
	TimeoutMS        int `yaml:"timeout_ms"`         // total call budget
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"` // connection establishment
	ReadTimeoutMS    int `yaml:"read_timeout_ms"`    // response read
}

// SchedulerConfig contains playback scheduling settings.
type SchedulerConfig struct {
	// TickMS is the clock poll interval in milliseconds.
	TickMS int `yaml:"tick_ms"`

	// RewindPolicy selects the behaviour when playback seeks backward:
	// "replay" re-fires events on the re-pass, "once" suppresses them.
	RewindPolicy string `yaml:"rewind_policy"`

	// ClockSource selects what drives the playback position: "transport"
	// for the built-in transport clock, "timecode" to follow an external
	// SMPTE timecode feed published over MQTT.
	ClockSource string `yaml:"clock_source"`

	// TimecodeFPS is the frame rate of the timecode feed. Only read when
	// ClockSource is "timecode".
	TimecodeFPS float64 `yaml:"timecode_fps"`

	// DryRun logs directives instead of transmitting them.
	DryRun bool `yaml:"dry_run"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
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
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for dispatch telemetry.
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

// SecurityConfig contains API authentication settings.
type SecurityConfig struct {
	Auth AuthConfig `yaml:"auth"`
	JWT  JWTConfig  `yaml:"jwt"`
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	// Enabled turns on JWT auth for mutating API routes.
	Enabled bool `yaml:"enabled"`

	// OperatorPasswordHash is the Argon2id PHC hash of the operator password
	// accepted by the login endpoint.
	OperatorPasswordHash string `yaml:"operator_password_hash"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHOWSYNC_SECTION_KEY
// For example: SHOWSYNC_DATABASE_PATH, SHOWSYNC_MQTT_HOST
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Shows: ShowsConfig{
			TimingsPath: "./configs/shows.yaml",
		},
		WLED: WLEDConfig{
			TimeoutMS:        500,
			ConnectTimeoutMS: 200,
			ReadTimeoutMS:    300,
		},
		Scheduler: SchedulerConfig{
			TickMS:       50,
			RewindPolicy: "replay",
			ClockSource:  "transport",
			TimecodeFPS:  30,
		},
		Database: DatabaseConfig{
			Path:        "./data/showsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "showsync-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHOWSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOWSYNC_SHOWS_PATH"); v != "" {
		cfg.Shows.TimingsPath = v
	}
	if v := os.Getenv("SHOWSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SHOWSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHOWSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHOWSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SHOWSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SHOWSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// JWT secret (always override in production)
	if v := os.Getenv("SHOWSYNC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength is the minimum accepted JWT secret length when API
// authentication is enabled. Short secrets make signed tokens forgeable.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Shows.TimingsPath == "" {
		errs = append(errs, "shows.timings_path is required")
	}

	for id, ctrl := range c.Controllers {
		if len(ctrl.URLs) == 0 {
			errs = append(errs, fmt.Sprintf("controllers.%s: at least one url is required", id))
		}
		for _, u := range ctrl.URLs {
			if strings.TrimSpace(u) == "" {
				errs = append(errs, fmt.Sprintf("controllers.%s: empty url", id))
			}
		}
	}

	// Device timeouts must be positive and nested inside the total budget.
	if c.WLED.TimeoutMS <= 0 {
		errs = append(errs, "wled.timeout_ms must be positive")
	}
	if c.WLED.ConnectTimeoutMS <= 0 || c.WLED.ConnectTimeoutMS > c.WLED.TimeoutMS {
		errs = append(errs, "wled.connect_timeout_ms must be positive and not exceed wled.timeout_ms")
	}
	if c.WLED.ReadTimeoutMS <= 0 || c.WLED.ReadTimeoutMS > c.WLED.TimeoutMS {
		errs = append(errs, "wled.read_timeout_ms must be positive and not exceed wled.timeout_ms")
	}

	if c.Scheduler.TickMS <= 0 {
		errs = append(errs, "scheduler.tick_ms must be positive")
	}
	switch c.Scheduler.RewindPolicy {
	case "replay", "once":
	default:
		errs = append(errs, `scheduler.rewind_policy must be "replay" or "once"`)
	}
	switch c.Scheduler.ClockSource {
	case "transport":
	case "timecode":
		if c.Scheduler.TimecodeFPS <= 0 {
			errs = append(errs, "scheduler.timecode_fps must be positive when clock_source is timecode")
		}
	default:
		errs = append(errs, `scheduler.clock_source must be "transport" or "timecode"`)
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Auth secrets are only required when auth is enabled. A show controller
	// on an isolated lighting VLAN commonly runs without it.
	if c.Security.Auth.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when auth is enabled (set SHOWSYNC_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
		if c.Security.Auth.OperatorPasswordHash == "" {
			errs = append(errs, "security.auth.operator_password_hash is required when auth is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// dispatchMarginMS pads the dispatcher's shared fan-out deadline beyond the
// per-call device budget, so a call that uses its whole budget still settles
// as an HTTP timeout instead of being cut off at the deadline.
const dispatchMarginMS = 50

// DeviceTimeout returns the total per-call device budget as a Duration.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.WLED.TimeoutMS) * time.Millisecond
}

// DispatchWait returns the dispatcher's shared per-event deadline: the
// device call budget plus a small settling margin.
func (c *Config) DispatchWait() time.Duration {
	return time.Duration(c.WLED.TimeoutMS+dispatchMarginMS) * time.Millisecond
}

// DeviceConnectTimeout returns the connection-establishment budget.
func (c *Config) DeviceConnectTimeout() time.Duration {
	return time.Duration(c.WLED.ConnectTimeoutMS) * time.Millisecond
}

// DeviceReadTimeout returns the response-read budget.
func (c *Config) DeviceReadTimeout() time.Duration {
	return time.Duration(c.WLED.ReadTimeoutMS) * time.Millisecond
}

// Tick returns the scheduler poll interval as a Duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Scheduler.TickMS) * time.Millisecond
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
