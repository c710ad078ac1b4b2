package config

import (
	"fmt"
	"time"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
)

// Config defines the configuration for the IPAM service.
type Config struct {
	Service        ServiceConfig        `mapstructure:"service"`
	Log            LogConfig            `mapstructure:"log"`
	API            APIConfig            `mapstructure:"api"`
	DB             DBConfig             `mapstructure:"db"`
	Pools          PoolsConfig          `mapstructure:"pools"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// ServiceConfig defines service-level configuration options.
type ServiceConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig defines the logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig defines the API server configuration.
type APIConfig struct {
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	APIKey      string   `mapstructure:"api_key"`
}

// DBConfig defines the database configuration.
type DBConfig struct {
	Path            string `mapstructure:"path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

// PoolConfig defines one address pool: its span and the range of block sizes
// it hands out.
type PoolConfig struct {
	CIDR           string `mapstructure:"cidr"`
	MinBlockPrefix int    `mapstructure:"min_block_prefix"`
	MaxBlockPrefix int    `mapstructure:"max_block_prefix"`
}

// PoolsConfig defines both pools of the paired allocation scheme.
type PoolsConfig struct {
	Primary PoolConfig `mapstructure:"primary"`
	CGNAT   PoolConfig `mapstructure:"cgnat"`
}

// CircuitBreakerConfig defines the database circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// Validate validates the configuration for correctness and completeness.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format: %s (must be json or text)", c.Log.Format)
	}

	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required")
	}

	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}

	// Pool definitions must parse and the block bounds must fit the span;
	// NewPool enforces both.
	if _, err := c.PrimaryPool(); err != nil {
		return fmt.Errorf("invalid pools.primary: %w", err)
	}
	if _, err := c.CGNATPool(); err != nil {
		return fmt.Errorf("invalid pools.cgnat: %w", err)
	}

	return nil
}

// PrimaryPool builds the primary pool from configuration.
func (c *Config) PrimaryPool() (engine.Pool, error) {
	return engine.NewPool("primary", c.Pools.Primary.CIDR, c.Pools.Primary.MinBlockPrefix, c.Pools.Primary.MaxBlockPrefix)
}

// CGNATPool builds the CGNAT pool from configuration.
func (c *Config) CGNATPool() (engine.Pool, error) {
	return engine.NewPool("cgnat", c.Pools.CGNAT.CIDR, c.Pools.CGNAT.MinBlockPrefix, c.Pools.CGNAT.MaxBlockPrefix)
}
