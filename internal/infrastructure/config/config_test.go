package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "marathon"
database:
  path: "/tmp/overlay.db"
obs:
  host: "obs.local"
  port: 4455
rtmp:
  stats_uri: "http://rtmp.local/stat"
  base_uri: "rtmp://rtmp.local/live"
overlay:
  scenes:
    run: "Run"
    intermission: "Break"
    preview: true
  current:
    name: "Current Run Name"
  runners:
    - scene: "Run"
      name: "Runner 1 Name"
      pronouns: "Runner 1 Pronouns"
    - scene: "Run"
      name: "Runner 2 Name"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "marathon" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "marathon")
	}
	if cfg.OBS.Host != "obs.local" {
		t.Errorf("OBS.Host = %q, want %q", cfg.OBS.Host, "obs.local")
	}
	if cfg.Overlay.Scenes.Intermission != "Break" {
		t.Errorf("Overlay.Scenes.Intermission = %q, want %q", cfg.Overlay.Scenes.Intermission, "Break")
	}
	if len(cfg.Overlay.Runners) != 2 {
		t.Fatalf("len(Overlay.Runners) = %d, want 2", len(cfg.Overlay.Runners))
	}
	if cfg.Overlay.Runners[0].Pronouns != "Runner 1 Pronouns" {
		t.Errorf("Runners[0].Pronouns = %q", cfg.Overlay.Runners[0].Pronouns)
	}

	// Defaults survive a partial file.
	if cfg.Overlay.Layout.MaxX != 1920 {
		t.Errorf("Overlay.Layout.MaxX = %v, want 1920", cfg.Overlay.Layout.MaxX)
	}
	if cfg.OBSRequestTimeout() != 3*time.Second {
		t.Errorf("OBSRequestTimeout() = %v, want 3s", cfg.OBSRequestTimeout())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "mqtt enabled without prefix", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.TopicPrefix = ""
		}, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "invalid obs port", mutate: func(c *Config) { c.OBS.Port = 0 }, wantErr: true},
		{name: "obs disabled ignores port", mutate: func(c *Config) {
			c.OBS.Enabled = false
			c.OBS.Port = 0
		}},
		{name: "zero obs timeout", mutate: func(c *Config) { c.OBS.RequestTimeout = 0 }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "zero layout bound", mutate: func(c *Config) { c.Overlay.Layout.MaxX = 0 }, wantErr: true},
		{name: "negative margin", mutate: func(c *Config) { c.Overlay.Layout.Margin = -1 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("OVERLAY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("OVERLAY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("OVERLAY_API_PORT", "9090")
	t.Setenv("OVERLAY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("OVERLAY_JWT_SECRET", "jwt-secret")
	t.Setenv("OBS_HOST", "10.0.0.5")
	t.Setenv("OBS_PORT", "4460")
	t.Setenv("OBS_PASSWORD", "hunter2")
	t.Setenv("RTMP_STATS_URI", "http://rtmp/stat")
	t.Setenv("OVERLAY_RTMP_BASE_URI", "rtmp://rtmp/live")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"API.Port", cfg.API.Port, 9090},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"OBS.Host", cfg.OBS.Host, "10.0.0.5"},
		{"OBS.Port", cfg.OBS.Port, 4460},
		{"OBS.Password", cfg.OBS.Password, "hunter2"},
		{"RTMP.StatsURI", cfg.RTMP.StatsURI, "http://rtmp/stat"},
		{"RTMP.BaseURI", cfg.RTMP.BaseURI, "rtmp://rtmp/live"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_PrefixedWins(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("OBS_HOST", "legacy")
	t.Setenv("OVERLAY_OBS_HOST", "preferred")

	applyEnvOverrides(cfg)

	if cfg.OBS.Host != "preferred" {
		t.Errorf("OBS.Host = %q, want %q", cfg.OBS.Host, "preferred")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.OBS.Port != 4455 {
		t.Errorf("defaultConfig OBS.Port = %d, want 4455", cfg.OBS.Port)
	}
	if cfg.OBS.Host != "localhost" {
		t.Errorf("defaultConfig OBS.Host = %q, want localhost", cfg.OBS.Host)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
