package config

import (
	"fmt"

	"github.com/rezkam/mono/internal/env"
)

// WorkerConfig holds every setting the background binary (cmd/worker)
// needs to run the materializer, populator, executor, watcher, and
// cleanup loops side by side against the same durable store and queue.
type WorkerConfig struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Materializer  MaterializerConfig
	Populator     PopulatorConfig
	Executor      ExecutorConfig
	Watcher       WatcherConfig
	Cleanup       CleanupConfig
	Observability ObservabilityConfig
}

// LoadWorkerConfig loads and validates cmd/worker's configuration.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("load worker config: %w", err)
	}
	return cfg, nil
}
