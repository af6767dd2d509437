package config

import (
	"errors"
	"fmt"

	"github.com/rezkam/mono/internal/env"
)

// Validation errors for the apikey generator binary's flags.
var (
	ErrNameRequired = errors.New("name is required (use -name flag)")
	ErrInvalidDays  = errors.New("days must be >= 0 (0 = never expires)")
)

// APIKeyGenConfig holds configuration for the apikey generator binary
// (cmd/apikey): Name and DaysValid come from command-line flags, the
// rest from the environment.
type APIKeyGenConfig struct {
	Database  DatabaseConfig
	APIKey    APIKeyConfig
	Name      string
	DaysValid int
}

// LoadAPIKeyGenConfig loads apikey generation configuration from the
// environment; name and daysValid come from command-line flags.
func LoadAPIKeyGenConfig(name string, daysValid int) (*APIKeyGenConfig, error) {
	cfg := &APIKeyGenConfig{Name: name, DaysValid: daysValid}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("load apikey config: %w", err)
	}
	if cfg.Name == "" {
		return nil, ErrNameRequired
	}
	if cfg.DaysValid < 0 {
		return nil, ErrInvalidDays
	}
	return cfg, nil
}
