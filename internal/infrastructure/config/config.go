package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Overlay Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	OBS       OBSConfig       `yaml:"obs"`
	RTMP      RTMPConfig      `yaml:"rtmp"`
	Overlay   OverlayConfig   `yaml:"overlay"`
}

// SiteConfig identifies this installation.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// MQTT is optional: when disabled, transitions are not published and
// button-deck commands are not accepted.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
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
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// WebSocketConfig contains settings for the live timeline feed.
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

// SecurityConfig contains operator authentication settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// OBSConfig describes how to reach the obs-websocket server.
type OBSConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Password       string `yaml:"password"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds, per call
}

// RTMPConfig points at the nginx-rtmp statistics page.
type RTMPConfig struct {
	StatsURI string `yaml:"stats_uri"`
	BaseURI  string `yaml:"base_uri"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// OverlayConfig is the per-deployment display-field mapping.
//
// Every name here is an OBS scene or input name. Empty names are skipped.
type OverlayConfig struct {
	Scenes       OverlayScenes `yaml:"scenes"`
	Current      RunFields     `yaml:"current"`
	Next         RunFields     `yaml:"next"`
	Runners      []PersonSlot  `yaml:"runners"`
	Commentators []PersonSlot  `yaml:"commentators"`
	Layout       OverlayLayout `yaml:"layout"`
	Shift        string        `yaml:"shift_field"`
}

// OverlayScenes names the scenes selected on each transition.
type OverlayScenes struct {
	Run          string `yaml:"run"`
	Intermission string `yaml:"intermission"`
	Idle         string `yaml:"idle"`
	Preview      bool   `yaml:"preview"`
}

// RunFields maps run attributes to text inputs.
type RunFields struct {
	Name           string `yaml:"name"`
	Category       string `yaml:"category"`
	Platform       string `yaml:"platform"`
	Estimate       string `yaml:"estimate"`
	TriggerWarning string `yaml:"trigger_warning"`
	Runners        string `yaml:"runners"`
}

// PersonSlot is one on-screen runner or commentator position.
type PersonSlot struct {
	Scene    string `yaml:"scene"`
	Name     string `yaml:"name"`
	Pronouns string `yaml:"pronouns"`
	Stream   string `yaml:"stream"`
}

// OverlayLayout holds the pronoun placement constants.
type OverlayLayout struct {
	Margin float64 `yaml:"margin"`
	MaxX   float64 `yaml:"max_x"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern OVERLAY_SECTION_KEY. The bare
// OBS_* and RTMP_* names used by older deployments are honoured too.
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
			ID:       "overlay-001",
			Name:     "Overlay Core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/overlay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "overlay-core",
			},
			QoS:         1,
			TopicPrefix: "overlay",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
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
				AccessTokenTTL: 720,
			},
		},
		OBS: OBSConfig{
			Enabled:        true,
			Host:           "localhost",
			Port:           4455,
			RequestTimeout: 3,
		},
		RTMP: RTMPConfig{
			Timeout: 5,
		},
		Overlay: OverlayConfig{
			Layout: OverlayLayout{
				Margin: 10,
				MaxX:   1920,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OVERLAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("OVERLAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OVERLAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OVERLAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("OVERLAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := envInt("OVERLAY_API_PORT"); v > 0 {
		cfg.API.Port = v
	}

	if v := os.Getenv("OVERLAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := firstEnv("OVERLAY_OBS_HOST", "OBS_HOST"); v != "" {
		cfg.OBS.Host = v
	}
	if v := envInt("OVERLAY_OBS_PORT"); v > 0 {
		cfg.OBS.Port = v
	} else if v := envInt("OBS_PORT"); v > 0 {
		cfg.OBS.Port = v
	}
	if v := firstEnv("OVERLAY_OBS_PASSWORD", "OBS_PASSWORD"); v != "" {
		cfg.OBS.Password = v
	}

	if v := firstEnv("OVERLAY_RTMP_STATS_URI", "RTMP_STATS_URI"); v != "" {
		cfg.RTMP.StatsURI = v
	}
	if v := firstEnv("OVERLAY_RTMP_BASE_URI", "RTMP_BASE_URI"); v != "" {
		cfg.RTMP.BaseURI = v
	}

	if v := os.Getenv("OVERLAY_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.OBS.Enabled && (c.OBS.Port < 1 || c.OBS.Port > 65535) {
		errs = append(errs, "obs.port must be between 1 and 65535")
	}
	if c.OBS.RequestTimeout <= 0 {
		errs = append(errs, "obs.request_timeout must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Overlay.Layout.MaxX <= 0 {
		errs = append(errs, "overlay.layout.max_x must be positive")
	}
	if c.Overlay.Layout.Margin < 0 {
		errs = append(errs, "overlay.layout.margin cannot be negative")
	}

	// Operator tokens guard the live broadcast; a short secret is rejected.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set OVERLAY_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// OBSRequestTimeout returns the per-call scene controller timeout.
func (c *Config) OBSRequestTimeout() time.Duration {
	return time.Duration(c.OBS.RequestTimeout) * time.Second
}
