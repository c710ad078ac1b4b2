package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
)

// Loader handles configuration loading from YAML files and environment variables
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// Load loads configuration from files and environment variables
// YAML files take precedence, then ENV variables override
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")

	// Search paths in order of priority
	l.v.AddConfigPath("/etc/ipam")
	l.v.AddConfigPath("$HOME/.ipam")
	l.v.AddConfigPath(".")

	l.v.SetEnvPrefix("IPAM")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.setDefaults()

	// Config file is optional; defaults and ENV cover everything
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "json")

	// API defaults
	l.v.SetDefault("api.listen_addr", ":8080")
	l.v.SetDefault("api.cors_origins", []string{"*"})

	// Database defaults
	l.v.SetDefault("db.path", "./data/ipam.db")
	l.v.SetDefault("db.max_open_conns", 25)
	l.v.SetDefault("db.max_idle_conns", 5)
	l.v.SetDefault("db.conn_max_lifetime", 300)

	// Service defaults
	l.v.SetDefault("service.shutdown_timeout", "30s")

	// Pool defaults match the fixed paired allocation scheme
	l.v.SetDefault("pools.primary.cidr", "10.0.0.0/16")
	l.v.SetDefault("pools.primary.min_block_prefix", engine.MinPrimaryPrefix)
	l.v.SetDefault("pools.primary.max_block_prefix", engine.MaxPrimaryPrefix)
	l.v.SetDefault("pools.cgnat.cidr", "100.64.0.0/10")
	l.v.SetDefault("pools.cgnat.min_block_prefix", engine.MinCGNATPrefix)
	l.v.SetDefault("pools.cgnat.max_block_prefix", engine.MaxCGNATPrefix)

	// Circuit breaker defaults
	l.v.SetDefault("circuit_breaker.enabled", true)
	l.v.SetDefault("circuit_breaker.failure_threshold", 5)
	l.v.SetDefault("circuit_breaker.reset_timeout", "30s")
}

// LoadWithPath loads configuration from a specific file path
func LoadWithPath(configPath string) (*Config, error) {
	loader := NewLoader()
	loader.v.SetConfigFile(configPath)
	return loader.Load()
}
