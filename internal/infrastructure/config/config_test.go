package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
provider:
  kind: "mqtt"
  source: "lab-shill"
netstate:
  noisy_properties: ["Strength", "WifiFrequencyList"]
  scan_timeout: 20
database:
  path: "/tmp/test.db"
  wal_mode: true
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.Source != "lab-shill" {
		t.Errorf("Provider.Source = %q, want %q", cfg.Provider.Source, "lab-shill")
	}
	if len(cfg.NetState.NoisyProperties) != 2 || cfg.NetState.NoisyProperties[1] != "WifiFrequencyList" {
		t.Errorf("NetState.NoisyProperties = %v", cfg.NetState.NoisyProperties)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	// Untouched sections keep their defaults.
	if cfg.NetState.EventLog.MaxEntries != 1000 {
		t.Errorf("EventLog.MaxEntries = %d, want 1000", cfg.NetState.EventLog.MaxEntries)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/config.yaml) error = %v", err)
	}
	if cfg.Provider.Kind != ProviderMQTT {
		t.Errorf("Provider.Kind = %q, want %q", cfg.Provider.Kind, ProviderMQTT)
	}
	if cfg.Provider.Bridge.Command != "" {
		t.Errorf("Provider.Bridge.Command = %q, want empty", cfg.Provider.Bridge.Command)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want 8090", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
provider:
  kind: "networkmanager"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "provider.kind") {
		t.Errorf("error %q does not mention provider.kind", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "shill provider",
			modify:  func(c *Config) { c.Provider.Kind = ProviderShill },
			wantErr: false,
		},
		{
			name: "shill provider without service",
			modify: func(c *Config) {
				c.Provider.Kind = ProviderShill
				c.Provider.Shill.Service = ""
			},
			wantErr: true,
		},
		{
			name:    "mqtt provider without source",
			modify:  func(c *Config) { c.Provider.Source = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "port ignored when API disabled",
			modify: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "short JWT secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "persisted event log without database",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "supervised bridge",
			modify:  func(c *Config) { c.Provider.Bridge.Command = "/usr/libexec/netstate-bridge" },
			wantErr: false,
		},
		{
			name: "bridge with shill provider",
			modify: func(c *Config) {
				c.Provider.Kind = ProviderShill
				c.Provider.Bridge.Command = "/usr/libexec/netstate-bridge"
			},
			wantErr: true,
		},
		{
			name:    "negative bridge restarts",
			modify:  func(c *Config) { c.Provider.Bridge.MaxRestarts = -1 },
			wantErr: true,
		},
		{
			name:    "negative scan timeout",
			modify:  func(c *Config) { c.NetState.ScanTimeout = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.Timeouts.Read = 15
	cfg.API.Timeouts.Write = 20
	cfg.API.Timeouts.Idle = 90
	cfg.NetState.ScanTimeout = 12
	cfg.NetState.EventLog.RetentionHours = 2

	if got := cfg.GetReadTimeout(); got != 15*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 90*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 90s", got)
	}
	if got := cfg.GetScanTimeout(); got != 12*time.Second {
		t.Errorf("GetScanTimeout() = %v, want 12s", got)
	}
	if got := cfg.GetEventRetention(); got != 2*time.Hour {
		t.Errorf("GetEventRetention() = %v, want 2h", got)
	}
	if got := cfg.GetBridgeRestartDelay(); got != 2*time.Second {
		t.Errorf("GetBridgeRestartDelay() = %v, want 2s", got)
	}
	if got := cfg.GetBridgeMaxRestartDelay(); got != time.Minute {
		t.Errorf("GetBridgeMaxRestartDelay() = %v, want 1m", got)
	}
	if got := cfg.GetBridgeStopTimeout(); got != 10*time.Second {
		t.Errorf("GetBridgeStopTimeout() = %v, want 10s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NETSTATE_PROVIDER_KIND", "shill")
	t.Setenv("NETSTATE_DATABASE_PATH", "/env/netstate.db")
	t.Setenv("NETSTATE_MQTT_HOST", "mqtt.env")
	t.Setenv("NETSTATE_API_PORT", "9191")
	t.Setenv("NETSTATE_JWT_SECRET", "env-secret-that-is-long-enough-1234")
	t.Setenv("NETSTATE_BRIDGE_COMMAND", "/opt/bridge")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Provider.Kind != ProviderShill {
		t.Errorf("Provider.Kind = %q, want %q", cfg.Provider.Kind, ProviderShill)
	}
	if cfg.Database.Path != "/env/netstate.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "mqtt.env" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("API.Port = %d, want 9191", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != "env-secret-that-is-long-enough-1234" {
		t.Errorf("JWT.Secret not overridden")
	}
	if cfg.Provider.Bridge.Command != "/opt/bridge" {
		t.Errorf("Provider.Bridge.Command = %q", cfg.Provider.Bridge.Command)
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	t.Setenv("NETSTATE_API_PORT", "not-a-number")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Provider.Kind != ProviderMQTT {
		t.Errorf("default Provider.Kind = %q, want %q", cfg.Provider.Kind, ProviderMQTT)
	}
	if len(cfg.NetState.NoisyProperties) != 1 || cfg.NetState.NoisyProperties[0] != "Strength" {
		t.Errorf("default NoisyProperties = %v, want [Strength]", cfg.NetState.NoisyProperties)
	}
	if !cfg.UsesMQTT() {
		t.Error("default config should use MQTT")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB should be disabled by default")
	}
}
