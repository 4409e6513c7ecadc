package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testSecret satisfies the 32-character minimum.
const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: `+testSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Liveness.SweepInterval != 60 {
		t.Errorf("Liveness.SweepInterval = %d, want 60", cfg.Liveness.SweepInterval)
	}
	if cfg.Liveness.StaleThreshold != 300 {
		t.Errorf("Liveness.StaleThreshold = %d, want 300", cfg.Liveness.StaleThreshold)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.WebSocket.Path, "/ws")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
liveness:
  sweep_interval: 10
  stale_threshold: 120
security:
  jwt_secret: `+testSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if got := cfg.Liveness.Interval(); got != 10*time.Second {
		t.Errorf("Liveness.Interval() = %v, want 10s", got)
	}
	if got := cfg.Liveness.Threshold(); got != 2*time.Minute {
		t.Errorf("Liveness.Threshold() = %v, want 2m", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./from-file.db
security:
  jwt_secret: `+testSecret+`
`)

	t.Setenv("FIELDGRID_DATABASE_PATH", "/from/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/from/env.db")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "jwt_secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name: "threshold shorter than sweep",
			mutate: func(c *Config) {
				c.Liveness.SweepInterval = 60
				c.Liveness.StaleThreshold = 30
			},
			wantErr: "stale_threshold",
		},
		{
			name: "bad qos only when mqtt enabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 7
			},
			wantErr: "mqtt.qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Security.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
