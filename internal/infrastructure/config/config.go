package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds understood by the daemon.
const (
	ProviderMQTT  = "mqtt"
	ProviderShill = "shill"
)

// Config is the root configuration structure for the netstate daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	NetState  NetStateConfig  `yaml:"netstate"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ProviderConfig selects and configures the property provider that feeds the engine.
type ProviderConfig struct {
	// Kind is "mqtt" (provider bridge over MQTT) or "shill" (D-Bus).
	Kind string `yaml:"kind"`

	// Source names the provider bridge in MQTT topics (netstate/provider/{source}/...).
	Source string `yaml:"source"`

	Shill ShillConfig `yaml:"shill"`

	// Bridge optionally runs the mqtt provider's bridge daemon under supervision.
	Bridge BridgeConfig `yaml:"bridge"`
}

// BridgeConfig describes the provider bridge daemon netstated supervises.
// An empty Command means the bridge is managed elsewhere.
type BridgeConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`

	// RestartDelay is the first restart delay (seconds); it doubles up to MaxRestartDelay.
	RestartDelay    int `yaml:"restart_delay"`
	MaxRestartDelay int `yaml:"max_restart_delay"`

	// MaxRestarts gives up after this many restarts. 0 is unlimited.
	MaxRestarts int `yaml:"max_restarts"`

	// StopTimeout is the SIGTERM grace period (seconds).
	StopTimeout int `yaml:"stop_timeout"`
}

// ShillConfig contains settings for the D-Bus provider.
type ShillConfig struct {
	// Service is the well-known bus name of the connection manager.
	Service string `yaml:"service"`

	// CallTimeout bounds each D-Bus method call (seconds).
	CallTimeout int `yaml:"call_timeout"`
}

// NetStateConfig contains settings for the state synchronization engine.
type NetStateConfig struct {
	// NoisyProperties lists network property keys that never re-announce the
	// default network when they change (e.g. signal strength).
	NoisyProperties []string `yaml:"noisy_properties"`

	// CheckPortalList is pushed to the provider at startup when non-empty.
	CheckPortalList string `yaml:"check_portal_list"`

	// ScanTimeout bounds how long API callers wait for a scan (seconds).
	ScanTimeout int `yaml:"scan_timeout"`

	// DispatchQueue is the size of the dispatcher's task buffer.
	DispatchQueue int `yaml:"dispatch_queue"`

	EventLog EventLogConfig `yaml:"event_log"`
}

// EventLogConfig contains network event log settings.
type EventLogConfig struct {
	// MaxEntries bounds the in-memory ring.
	MaxEntries int `yaml:"max_entries"`

	// Persist writes entries to the network_events table.
	Persist bool `yaml:"persist"`

	// RetentionHours prunes persisted entries older than this. 0 keeps everything.
	RetentionHours int `yaml:"retention_hours"`

	// CBORFile appends entries to a CBOR stream at this path when set.
	CBORFile string `yaml:"cbor_file"`
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

// APITimeoutConfig contains HTTP timeout settings.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// An empty secret disables API authentication (local-only deployments).
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NETSTATE_SECTION_KEY
// For example: NETSTATE_DATABASE_PATH, NETSTATE_API_PORT
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:   ProviderMQTT,
			Source: "shill",
			Shill: ShillConfig{
				Service:     "org.chromium.flimflam",
				CallTimeout: 10,
			},
			Bridge: BridgeConfig{
				RestartDelay:    2,
				MaxRestartDelay: 60,
				StopTimeout:     10,
			},
		},
		NetState: NetStateConfig{
			NoisyProperties: []string{"Strength"},
			ScanTimeout:     15,
			DispatchQueue:   256,
			EventLog: EventLogConfig{
				MaxEntries:     1000,
				Persist:        true,
				RetentionHours: 24 * 7,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/netstate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "netstated",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
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
				Issuer: "netstated",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NETSTATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Provider
	if v := os.Getenv("NETSTATE_PROVIDER_KIND"); v != "" {
		cfg.Provider.Kind = v
	}
	if v := os.Getenv("NETSTATE_PROVIDER_SOURCE"); v != "" {
		cfg.Provider.Source = v
	}
	if v := os.Getenv("NETSTATE_BRIDGE_COMMAND"); v != "" {
		cfg.Provider.Bridge.Command = v
	}

	// Database
	if v := os.Getenv("NETSTATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NETSTATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETSTATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETSTATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NETSTATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NETSTATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("NETSTATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("NETSTATE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Provider.Kind {
	case ProviderMQTT:
		if c.Provider.Source == "" {
			errs = append(errs, "provider.source is required for the mqtt provider")
		}
	case ProviderShill:
		if c.Provider.Shill.Service == "" {
			errs = append(errs, "provider.shill.service is required for the shill provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("provider.kind must be %q or %q", ProviderMQTT, ProviderShill))
	}

	if c.Provider.Bridge.Command != "" && c.Provider.Kind != ProviderMQTT {
		errs = append(errs, "provider.bridge.command is only used with the mqtt provider")
	}
	if c.Provider.Bridge.MaxRestarts < 0 {
		errs = append(errs, "provider.bridge.max_restarts must not be negative")
	}

	if c.NetState.ScanTimeout < 0 {
		errs = append(errs, "netstate.scan_timeout must not be negative")
	}
	if c.NetState.EventLog.MaxEntries < 0 {
		errs = append(errs, "netstate.event_log.max_entries must not be negative")
	}

	if c.NetState.EventLog.Persist && c.Database.Path == "" {
		errs = append(errs, "database.path is required when netstate.event_log.persist is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The secret is optional, but a configured secret must be strong enough
	// that tokens cannot be forged by brute force.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// UsesMQTT reports whether any configured component needs the MQTT broker.
func (c *Config) UsesMQTT() bool {
	return c.Provider.Kind == ProviderMQTT
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

// GetScanTimeout returns the scan wait timeout as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.NetState.ScanTimeout) * time.Second
}

// GetShillCallTimeout returns the D-Bus call timeout as a Duration.
func (c *Config) GetShillCallTimeout() time.Duration {
	return time.Duration(c.Provider.Shill.CallTimeout) * time.Second
}

// GetBridgeRestartDelay returns the first bridge restart delay as a Duration.
func (c *Config) GetBridgeRestartDelay() time.Duration {
	return time.Duration(c.Provider.Bridge.RestartDelay) * time.Second
}

// GetBridgeMaxRestartDelay returns the bridge restart backoff cap as a Duration.
func (c *Config) GetBridgeMaxRestartDelay() time.Duration {
	return time.Duration(c.Provider.Bridge.MaxRestartDelay) * time.Second
}

// GetBridgeStopTimeout returns the bridge SIGTERM grace period as a Duration.
func (c *Config) GetBridgeStopTimeout() time.Duration {
	return time.Duration(c.Provider.Bridge.StopTimeout) * time.Second
}

// GetEventRetention returns how long persisted network events are kept.
// Zero means events are never pruned.
func (c *Config) GetEventRetention() time.Duration {
	return time.Duration(c.NetState.EventLog.RetentionHours) * time.Hour
}
