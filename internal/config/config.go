// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Redemption RedemptionConfig `mapstructure:"redemption"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration. When Enabled is false
// the service falls back to single-process in-memory lease, rate and
// session stores.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RedemptionConfig holds the redemption protocol settings.
type RedemptionConfig struct {
	// UserLockTTL bounds how long a crashed holder can block an owner's
	// redemptions from another device.
	UserLockTTL time.Duration `mapstructure:"user_lock_ttl"`
	// TicketLockTTL bounds how long a crashed holder can block a ticket.
	TicketLockTTL time.Duration `mapstructure:"ticket_lock_ttl"`
	// MinInterval is the minimum time between two redemptions by the
	// same owner.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// SessionTimeout is the idle window after which a session record is
	// no longer considered fresh.
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	// Timezone is the IANA zone tickets are day-scoped in.
	Timezone string `mapstructure:"timezone"`
	// RateFailOpen allows redemption when the rate-limit store itself
	// fails. Set false to fail closed instead.
	RateFailOpen bool `mapstructure:"rate_fail_open"`
	// ReconcileInterval is how often the ledger reconciler scans for
	// used tickets missing a ledger entry.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Location resolves the configured issuance timezone.
func (r *RedemptionConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid redemption timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// e.g. SERVER_ADDR, DATABASE_HOST, REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "spinwheel")
	v.SetDefault("database.name", "spinwheel")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Redemption defaults
	v.SetDefault("redemption.user_lock_ttl", "60s")
	v.SetDefault("redemption.ticket_lock_ttl", "30s")
	v.SetDefault("redemption.min_interval", "60s")
	v.SetDefault("redemption.session_timeout", "30m")
	v.SetDefault("redemption.timezone", "UTC")
	v.SetDefault("redemption.rate_fail_open", true)
	v.SetDefault("redemption.reconcile_interval", "1m")
}
