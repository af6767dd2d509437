package config

import (
	"errors"
	"time"
)

// ErrDatabaseURLRequired is returned when no Postgres DSN was configured.
var ErrDatabaseURLRequired = errors.New("MONO_DATABASE_URL is required")

// DatabaseConfig holds PostgreSQL connection configuration shared by
// every binary that touches the durable store.
type DatabaseConfig struct {
	URL             string        `env:"MONO_DATABASE_URL"`
	MaxOpenConns    int           `env:"MONO_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MONO_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"MONO_DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `env:"MONO_DB_CONN_MAX_IDLE_TIME"`
}

// Validate applies pool defaults and checks the DSN is present. Called
// automatically by env.Load since DatabaseConfig implements Validator.
func (c *DatabaseConfig) Validate() error {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = time.Minute
	}
	if c.URL == "" {
		return ErrDatabaseURLRequired
	}
	return nil
}

// RedisConfig holds the connection URL for the lock and queue stores.
type RedisConfig struct {
	URL string `env:"MONO_REDIS_URL"`
}

func (c *RedisConfig) Validate() error {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	return nil
}
