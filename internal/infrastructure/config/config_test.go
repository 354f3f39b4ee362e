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
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 9090
protocols:
  ir:
    enabled: true
    config_file: "/etc/graylogic/ir.yaml"
    poll_interval: 10s
discovery:
  enabled: true
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Protocols.IR.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Protocols.IR.PollInterval)
	}
	// Untouched defaults survive.
	if cfg.Protocols.IR.HealthInterval != 30*time.Second {
		t.Errorf("HealthInterval = %v, want 30s", cfg.Protocols.IR.HealthInterval)
	}
	if cfg.Discovery.MDNSService != "_graylogic-ir._tcp" {
		t.Errorf("MDNSService = %q", cfg.Discovery.MDNSService)
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
	_, err := Load(writeConfig(t, "site:\n  id: \"\"\n"))
	if err == nil || !strings.Contains(err.Error(), "site.id") {
		t.Errorf("Load() error = %v, want site.id failure", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAYLOGIC_MQTT_HOST", "env-broker")
	t.Setenv("GRAYLOGIC_API_PORT", "7000")
	t.Setenv("GRAYLOGIC_IR_CONFIG_FILE", "/env/ir.yaml")
	t.Setenv("GRAYLOGIC_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: file-broker\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 7000 {
		t.Errorf("API.Port = %d, want 7000", cfg.API.Port)
	}
	if cfg.Protocols.IR.ConfigFile != "/env/ir.yaml" {
		t.Errorf("ConfigFile = %q", cfg.Protocols.IR.ConfigFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"port ignored when api disabled", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"ir without file", func(c *Config) { c.Protocols.IR.ConfigFile = "" }, "config_file"},
		{"poll too fast", func(c *Config) { c.Protocols.IR.PollInterval = time.Millisecond }, "poll_interval"},
		{"health too fast", func(c *Config) { c.Protocols.IR.HealthInterval = 0 }, "health_interval"},
		{"bad mdns service", func(c *Config) { c.Discovery.Enabled = true; c.Discovery.MDNSService = "graylogic" }, "mdns_service"},
		{"short ssdp max age", func(c *Config) { c.Discovery.Enabled = true; c.Discovery.SSDPMaxAge = 5 }, "ssdp_max_age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.Database.Path = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "database.path") {
		t.Errorf("Validate() error = %v, want both problems", err)
	}
}

func TestTimeouts(t *testing.T) {
	cfg := defaultConfig()
	if cfg.GetReadTimeout() != 30*time.Second || cfg.GetWriteTimeout() != 30*time.Second || cfg.GetIdleTimeout() != 60*time.Second {
		t.Errorf("timeouts = %v %v %v", cfg.GetReadTimeout(), cfg.GetWriteTimeout(), cfg.GetIdleTimeout())
	}
}
