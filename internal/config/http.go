package config

import "time"

// HTTPConfig holds the API server's listener and request-handling
// configuration.
type HTTPConfig struct {
	Host              string        `env:"MONO_HTTP_HOST"`
	Port              string        `env:"MONO_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"MONO_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"MONO_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"MONO_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"MONO_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"MONO_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"MONO_HTTP_MAX_BODY_BYTES"`
}

func (c *HTTPConfig) Validate() error {
	if c.Port == "" {
		c.Port = "8081"
	}
	return nil
}

// ObservabilityConfig controls whether telemetry is exported via OTLP
// or kept local (plain stdout JSON logging, no-op tracer/meter).
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"MONO_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = "task-scheduler"
	}
	return nil
}
