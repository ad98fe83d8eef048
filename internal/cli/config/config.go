// Package config loads marker tooling configuration from marker.yml, with
// environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the marker tooling configuration.
type Config struct {
	// SchemaPath is the JSON schema document registered on startup.
	SchemaPath string       `mapstructure:"schema_path"`
	Server     ServerConfig `mapstructure:"server"`
	Cache      CacheConfig  `mapstructure:"cache"`
	Logging    LogConfig    `mapstructure:"logging"`
}

// ServerConfig configures the introspection server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
	// TTLSeconds bounds cached responses; zero uses the backend default.
	TTLSeconds int `mapstructure:"ttl_seconds"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// LogConfig configures server logging.
type LogConfig struct {
	// Mode is "production" or "development".
	Mode string `mapstructure:"mode"`
}

// Load reads marker.yml (or marker.yaml) from the working directory,
// applying defaults and MARKER_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("schema_path", "marker-schema.json")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7423)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 0)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("logging.mode", "production")

	v.SetConfigName("marker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults plus environment.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validate(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be \"memory\" or \"redis\", got: %s", cfg.Cache.Backend)
	}
	switch cfg.Logging.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("logging.mode must be \"production\" or \"development\", got: %s", cfg.Logging.Mode)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	return nil
}
