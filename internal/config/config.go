// ABOUTME: Configuration loading and parsing for locus-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultHTTPAddr     = "127.0.0.1:8080"
	DefaultRadiusMeters = 500.0
	DefaultDedupeTTL    = 10 * time.Minute
	DefaultQueueSize    = 64
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Config represents the complete locus-gateway configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Geofence      GeofenceConfig      `yaml:"geofence" toml:"geofence"`
	Picker        PickerConfig        `yaml:"picker" toml:"picker"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path is a SQLite file path, or ":memory:"
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret protects /api routes when set. Must be at least 32 bytes.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// GeofenceConfig holds geofence registration and delivery settings
type GeofenceConfig struct {
	RadiusMeters float64 `yaml:"radius_m" toml:"radius_m"`
	QueueSize    int     `yaml:"queue_size" toml:"queue_size"`
	// LocationEnabled is a pointer so an omitted value can default to true
	LocationEnabled *bool `yaml:"location_enabled" toml:"location_enabled"`

	// DedupeTTL is how long a delivered event ID suppresses redeliveries
	DedupeTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	DedupeTTLRaw string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// PickerConfig holds map picker settings
type PickerConfig struct {
	// Centering is "after_permission" (default) or "on_ready"
	Centering        string  `yaml:"centering" toml:"centering"`
	DefaultLatitude  float64 `yaml:"default_latitude" toml:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude" toml:"default_longitude"`
	// MapType is normal (default), hybrid, satellite or terrain
	MapType          string  `yaml:"map_type" toml:"map_type"`
}

// NotificationsConfig holds configuration for every reminder notification channel
type NotificationsConfig struct {
	Log      bool           `yaml:"log" toml:"log"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
}

// TelegramConfig holds Telegram bot notification configuration
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
	ChatID  int64  `yaml:"chat_id" toml:"chat_id"`
}

// MatrixConfig holds Matrix room notification configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(string(data), isTOML(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration text, then applies defaults and validates.
func Parse(content string, asTOML bool) (*Config, error) {
	expanded := expandEnvVars(content)

	var cfg Config
	if asTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Geofence.RadiusMeters == 0 {
		c.Geofence.RadiusMeters = DefaultRadiusMeters
	}
	if c.Geofence.QueueSize == 0 {
		c.Geofence.QueueSize = DefaultQueueSize
	}
	if c.Geofence.DedupeTTLRaw == "" && c.Geofence.DedupeTTL == 0 {
		c.Geofence.DedupeTTL = DefaultDedupeTTL
	}
	if c.Geofence.LocationEnabled == nil {
		enabled := true
		c.Geofence.LocationEnabled = &enabled
	}
	if c.Picker.Centering == "" {
		c.Picker.Centering = "after_permission"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.Geofence.RadiusMeters < 0 {
		return fmt.Errorf("geofence.radius_m must not be negative")
	}
	if c.Geofence.QueueSize < 0 {
		return fmt.Errorf("geofence.queue_size must not be negative")
	}
	if c.Geofence.DedupeTTL < 0 {
		return fmt.Errorf("geofence.dedupe_ttl must not be negative")
	}

	switch c.Picker.Centering {
	case "", "after_permission", "on_ready":
	default:
		return fmt.Errorf("picker.centering must be after_permission or on_ready, got %q", c.Picker.Centering)
	}
	switch c.Picker.MapType {
	case "", "normal", "hybrid", "satellite", "terrain":
	default:
		return fmt.Errorf("picker.map_type must be normal, hybrid, satellite or terrain, got %q", c.Picker.MapType)
	}
	if c.Picker.DefaultLatitude < -90 || c.Picker.DefaultLatitude > 90 {
		return fmt.Errorf("picker.default_latitude out of range")
	}
	if c.Picker.DefaultLongitude < -180 || c.Picker.DefaultLongitude > 180 {
		return fmt.Errorf("picker.default_longitude out of range")
	}

	if t := c.Notifications.Telegram; t.Enabled {
		if t.Token == "" {
			return fmt.Errorf("notifications.telegram.token is required when telegram is enabled")
		}
		if t.ChatID == 0 {
			return fmt.Errorf("notifications.telegram.chat_id is required when telegram is enabled")
		}
	}

	if m := c.Notifications.Matrix; m.Enabled {
		if m.Homeserver == "" || m.AccessToken == "" || m.RoomID == "" {
			return fmt.Errorf("notifications.matrix requires homeserver, access_token and room_id when enabled")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// LocationEnabled reports the initial location setting for the geofence monitor.
func (c *Config) LocationEnabled() bool {
	return c.Geofence.LocationEnabled == nil || *c.Geofence.LocationEnabled
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Geofence.DedupeTTLRaw != "" {
		d, err := time.ParseDuration(cfg.Geofence.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Geofence.DedupeTTLRaw, err)
		}
		cfg.Geofence.DedupeTTL = d
	}
	return nil
}

// Sample returns a commented starter configuration in YAML that stores
// reminders at dbPath.
func Sample(dbPath string) string {
	return strings.Replace(sampleConfig, "{{db_path}}", dbPath, 1)
}

const sampleConfig = `# locus-gateway configuration
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "{{db_path}}"

auth:
  # Leave empty to disable bearer auth on /api routes
  jwt_secret: "${LOCUS_JWT_SECRET}"

geofence:
  radius_m: 500
  dedupe_ttl: "10m"
  queue_size: 64
  location_enabled: true

picker:
  centering: "after_permission"
  map_type: "normal"
  default_latitude: -33.8523341
  default_longitude: 151.2106085

notifications:
  log: true
  telegram:
    enabled: false
    token: "${LOCUS_TELEGRAM_TOKEN}"
    chat_id: 0
  matrix:
    enabled: false
    homeserver: "https://matrix.org"
    user_id: "@locus:matrix.org"
    access_token: "${LOCUS_MATRIX_TOKEN}"
    room_id: ""

logging:
  level: "info"
  format: "text"
`
