// Package config provides configuration management for the application
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/navikt/benchroom/internal/models"
)

// ConfigPathEnvVar is the environment variable that points at an optional YAML config file
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// Config is the complete application configuration
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Room    RoomConfig    `koanf:"room"`
	Redis   RedisConfig   `koanf:"redis"`
	Badger  BadgerConfig  `koanf:"badger"`
	Auth    AuthConfig    `koanf:"auth"`
	Support SupportConfig `koanf:"support"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `koanf:"port"`
	// RateLimitPerMinute caps public API requests per client IP (0 disables the limit)
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RoomConfig describes the tracked room and its bench enumeration
type RoomConfig struct {
	ID      string   `koanf:"id"`
	Benches []string `koanf:"benches"`
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool `koanf:"enabled"`
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string `koanf:"uri"`
	Host      string `koanf:"host"`
	Port      string `koanf:"port"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
	// CheckInTTLHours expires check-in records after the given number of hours (0 keeps them forever)
	CheckInTTLHours int `koanf:"checkin_ttl_hours"`
}

// BadgerConfig holds settings for the embedded Badger store
type BadgerConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// AuthConfig holds admin authentication and authorization settings
type AuthConfig struct {
	IntrospectionEndpoint string   `koanf:"introspection_endpoint"`
	IdentityProvider      string   `koanf:"identity_provider"`
	AdminIdents           []string `koanf:"admin_idents"`
	// PolicyPath optionally replaces the embedded authorization policy
	PolicyPath string `koanf:"policy_path"`
}

// SupportConfig holds settings for the live-support surface
type SupportConfig struct {
	// WebhookSecret verifies call events posted by the video platform
	WebhookSecret string `koanf:"webhook_secret"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			RateLimitPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Room: RoomConfig{
			ID:      models.DefaultRoomID,
			Benches: models.BenchNames(models.DefaultBenches),
		},
		Redis: RedisConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            "6379",
			DB:              0,
			KeyPrefix:       "benchroom:",
			CheckInTTLHours: 0,
		},
		Badger: BadgerConfig{
			Enabled: false,
			Path:    "./data/badger",
		},
		Auth: AuthConfig{
			IdentityProvider: "azuread",
		},
	}
}

// envMappings maps environment variable names (lower-cased) to config paths
var envMappings = map[string]string{
	"port":                         "server.port",
	"rate_limit_per_minute":        "server.rate_limit_per_minute",
	"log_level":                    "logging.level",
	"log_format":                   "logging.format",
	"room_id":                      "room.id",
	"benches":                      "room.benches",
	"redis_enabled":                "redis.enabled",
	"redis_uri_benchroom":          "redis.uri",
	"redis_host_benchroom":         "redis.host",
	"redis_port_benchroom":         "redis.port",
	"redis_username_benchroom":     "redis.username",
	"redis_password_benchroom":     "redis.password",
	"redis_db":                     "redis.db",
	"redis_key_prefix":             "redis.key_prefix",
	"redis_checkin_ttl_hours":      "redis.checkin_ttl_hours",
	"badger_enabled":               "badger.enabled",
	"badger_path":                  "badger.path",
	"badger_in_memory":             "badger.in_memory",
	"token_introspection_endpoint": "auth.introspection_endpoint",
	"identity_provider":            "auth.identity_provider",
	"admin_idents":                 "auth.admin_idents",
	"authz_policy_path":            "auth.policy_path",
	"call_webhook_secret":          "support.webhook_secret",
}

// sliceConfigPaths are parsed from comma-separated strings when set through the environment
var sliceConfigPaths = []string{
	"room.benches",
	"auth.admin_idents",
}

// envTransformFunc maps a known environment variable to its config path; unknown variables are ignored
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads configuration from defaults, an optional YAML file and the environment, in that order
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Room.ID == "" {
		return errors.New("room id is required")
	}
	if len(c.Room.Benches) == 0 {
		return errors.New("at least one bench must be configured")
	}
	seen := make(map[string]struct{}, len(c.Room.Benches))
	for _, b := range c.Room.Benches {
		if _, ok := seen[b]; ok {
			return fmt.Errorf("bench %q is configured twice", b)
		}
		seen[b] = struct{}{}
	}
	if c.Redis.Enabled && c.Badger.Enabled {
		return errors.New("redis and badger storage cannot both be enabled")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// BenchList returns the configured bench enumeration
func (c RoomConfig) BenchList() []models.Bench {
	benches := make([]models.Bench, len(c.Benches))
	for i, b := range c.Benches {
		benches[i] = models.Bench(b)
	}
	return benches
}

// CheckInTTL returns the expiry applied to stored check-ins
func (c RedisConfig) CheckInTTL() time.Duration {
	return time.Duration(c.CheckInTTLHours) * time.Hour
}

// IsAuthConfigured checks if admin authentication can be performed
func (c AuthConfig) IsAuthConfigured() bool {
	return c.IntrospectionEndpoint != ""
}
