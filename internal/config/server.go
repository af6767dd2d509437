package config

import (
	"fmt"
	"time"

	"github.com/rezkam/mono/internal/env"
)

// ServerConfig holds every setting the API binary (cmd/server) needs:
// the durable store, the thin CRUD surface, and its authenticator.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Auth            AuthConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"MONO_SHUTDOWN_TIMEOUT"`
}

func (c *ServerConfig) Validate() error {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// LoadServerConfig loads and validates cmd/server's configuration.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	return cfg, nil
}
