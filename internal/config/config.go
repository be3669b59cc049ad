package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSupabase = "supabase"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings, shared by the queue and the
// Redis store driver.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects the host notification center backend.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	Table      string `mapstructure:"table"`
}

// QueueConfig holds delivery queue settings.
type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
}

// SweeperConfig holds delivery sweeper settings (durations as seconds for YAML/env compat).
type SweeperConfig struct {
	IntervalSec int `mapstructure:"interval_sec"`
	BatchSize   int `mapstructure:"batch_size"`
}

// Interval returns the sweep interval as a duration.
func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// EngineConfig holds notification engine settings.
type EngineConfig struct {
	Location     string `mapstructure:"location"`
	DefaultSound string `mapstructure:"default_sound"`
	MaxActions   int    `mapstructure:"max_actions"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the LOCALNOTIFY_ prefix and underscore separators.
// Example: LOCALNOTIFY_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("LOCALNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional, env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		cfg.Auth.APIKeys = splitList(apiKeysStr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", DriverRedis)
	v.SetDefault("store.key_prefix", "localnotify")
	v.SetDefault("supabase.table", "local_notifications")
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("sweeper.interval_sec", 300) // 5 minutes
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("engine.location", "Local")
	v.SetDefault("engine.default_sound", "default")
	v.SetDefault("engine.max_actions", 4)
	v.SetDefault("log.level", "info")
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverSupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return fmt.Errorf("store driver %q requires supabase.url and supabase.service_key", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.Engine.TimeLocation(); err != nil {
		return err
	}
	if c.Engine.MaxActions < 0 {
		return fmt.Errorf("engine.max_actions must be non-negative, got %d", c.Engine.MaxActions)
	}
	if c.Sweeper.IntervalSec <= 0 {
		return fmt.Errorf("sweeper.interval_sec must be positive, got %d", c.Sweeper.IntervalSec)
	}
	return nil
}

// TimeLocation resolves the engine's calendar location.
func (c EngineConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.location %q: %w", c.Location, err)
	}
	return loc, nil
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
