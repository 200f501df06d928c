package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
logging:
  level: "debug"
  format: "text"
events:
  enabled: true
  broker:
    host: "broker.example.com"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	if cfg.Events.Broker.Host != "broker.example.com" {
		t.Errorf("Events.Broker.Host = %q, want %q", cfg.Events.Broker.Host, "broker.example.com")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Database: DatabaseConfig{
					Path: "/data/inventory.db",
				},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			config: &Config{
				Database: DatabaseConfig{Path: ""},
			},
			wantErr: true,
		},
		{
			name: "negative busy timeout",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db", BusyTimeout: -1},
			},
			wantErr: true,
		},
		{
			name: "events enabled with valid broker",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db"},
				Events: EventsConfig{
					Enabled: true,
					Broker:  BrokerConfig{Host: "localhost", Port: 1883},
					QoS:     1,
				},
			},
			wantErr: false,
		},
		{
			name: "events enabled without host",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db"},
				Events: EventsConfig{
					Enabled: true,
					Broker:  BrokerConfig{Port: 1883},
					QoS:     1,
				},
			},
			wantErr: true,
		},
		{
			name: "events enabled with invalid QoS",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db"},
				Events: EventsConfig{
					Enabled: true,
					Broker:  BrokerConfig{Host: "localhost", Port: 1883},
					QoS:     3,
				},
			},
			wantErr: true,
		},
		{
			name: "events enabled with invalid port",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db"},
				Events: EventsConfig{
					Enabled: true,
					Broker:  BrokerConfig{Host: "localhost", Port: 70000},
					QoS:     1,
				},
			},
			wantErr: true,
		},
		{
			name: "events disabled skips broker checks",
			config: &Config{
				Database: DatabaseConfig{Path: "/data/inventory.db"},
				Events: EventsConfig{
					Enabled: false,
					QoS:     9,
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("ASSETFORGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ASSETFORGE_LOGGING_LEVEL", "debug")
	t.Setenv("ASSETFORGE_EVENTS_HOST", "mqtt.example.com")
	t.Setenv("ASSETFORGE_EVENTS_PORT", "8883")
	t.Setenv("ASSETFORGE_EVENTS_USERNAME", "testuser")
	t.Setenv("ASSETFORGE_EVENTS_PASSWORD", "testpass")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	if cfg.Events.Broker.Host != "mqtt.example.com" {
		t.Errorf("Events.Broker.Host = %q, want %q", cfg.Events.Broker.Host, "mqtt.example.com")
	}

	if cfg.Events.Broker.Port != 8883 {
		t.Errorf("Events.Broker.Port = %d, want 8883", cfg.Events.Broker.Port)
	}

	if cfg.Events.Auth.Username != "testuser" {
		t.Errorf("Events.Auth.Username = %q, want %q", cfg.Events.Auth.Username, "testuser")
	}

	if cfg.Events.Auth.Password != "testpass" {
		t.Errorf("Events.Auth.Password = %q, want %q", cfg.Events.Auth.Password, "testpass")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if !cfg.Database.WALMode {
		t.Error("defaultConfig should enable WAL mode")
	}

	if cfg.Events.Enabled {
		t.Error("defaultConfig should leave events disabled")
	}

	if cfg.Events.Broker.Port != 1883 {
		t.Errorf("defaultConfig Events.Broker.Port = %d, want 1883", cfg.Events.Broker.Port)
	}
}
