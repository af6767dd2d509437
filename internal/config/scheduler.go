package config

import "time"

// MaterializerConfig tunes the recurrence materializer (C4).
type MaterializerConfig struct {
	LookAhead     time.Duration `env:"MONO_MATERIALIZER_LOOKAHEAD"`
	CycleInterval time.Duration `env:"MONO_MATERIALIZER_CYCLE_INTERVAL"`
	BatchSize     int           `env:"MONO_MATERIALIZER_BATCH_SIZE"`
	QueueName     string        `env:"MONO_MATERIALIZER_QUEUE_NAME"`
}

func (c *MaterializerConfig) Validate() error {
	if c.LookAhead <= 0 {
		c.LookAhead = 24 * time.Hour
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.QueueName == "" {
		c.QueueName = "default"
	}
	return nil
}

// PopulatorConfig tunes the queue populator (C5).
type PopulatorConfig struct {
	PollInterval  time.Duration `env:"MONO_POPULATOR_POLL_INTERVAL"`
	BatchSize     int           `env:"MONO_POPULATOR_BATCH_SIZE"`
	QueueName     string        `env:"MONO_POPULATOR_QUEUE_NAME"`
	HighWaterMark int64         `env:"MONO_POPULATOR_HIGH_WATER_MARK"`
}

func (c *PopulatorConfig) Validate() error {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.QueueName == "" {
		c.QueueName = "default"
	}
	if c.HighWaterMark <= 0 {
		c.HighWaterMark = 10_000
	}
	return nil
}

// ExecutorConfig tunes the job executor (C6) and the sandbox (C9) it
// runs every job inside.
type ExecutorConfig struct {
	ConcurrencyLimit int64         `env:"MONO_EXECUTOR_CONCURRENCY"`
	QueueNames       []string      `env:"-"`
	QueueNamesRaw    string        `env:"MONO_EXECUTOR_QUEUE_NAMES"`
	LockTTL           time.Duration `env:"MONO_EXECUTOR_LOCK_TTL"`
	EmptyQueueBackoff time.Duration `env:"MONO_EXECUTOR_EMPTY_QUEUE_BACKOFF"`

	Timeout        time.Duration `env:"MONO_EXECUTOR_TIMEOUT"`
	MaxMemoryMB    int64         `env:"MONO_EXECUTOR_MAX_MEMORY_MB"`
	MaxCPUPercent  int           `env:"MONO_EXECUTOR_MAX_CPU_PERCENT"`
	MaxOutputBytes int           `env:"MONO_EXECUTOR_MAX_OUTPUT_BYTES"`
}

func (c *ExecutorConfig) Validate() error {
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = 10
	}
	c.QueueNames = splitNonEmpty(c.QueueNamesRaw, "default")
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.EmptyQueueBackoff <= 0 {
		c.EmptyQueueBackoff = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 64 * 1024
	}
	return nil
}

// WatcherConfig tunes the failure watcher (C7).
type WatcherConfig struct {
	ScanInterval     time.Duration `env:"MONO_WATCHER_SCAN_INTERVAL"`
	InitialBackoff   time.Duration `env:"MONO_WATCHER_INITIAL_BACKOFF"`
	MaxBackoff       time.Duration `env:"MONO_WATCHER_MAX_BACKOFF"`
	AlertCooldown    time.Duration `env:"MONO_WATCHER_ALERT_COOLDOWN"`
}

func (c *WatcherConfig) Validate() error {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 10 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = 15 * time.Minute
	}
	return nil
}

// CleanupConfig tunes the orphan reaper and archiver loop (C8).
type CleanupConfig struct {
	OrphanInterval  time.Duration `env:"MONO_CLEANUP_ORPHAN_INTERVAL"`
	OrphanMaxAge    time.Duration `env:"MONO_CLEANUP_ORPHAN_MAX_AGE"`
	ArchiveInterval time.Duration `env:"MONO_CLEANUP_ARCHIVE_INTERVAL"`
	Retention       time.Duration `env:"MONO_CLEANUP_RETENTION"`
	ArchiveBucket   string        `env:"MONO_CLEANUP_ARCHIVE_BUCKET"`
}

func (c *CleanupConfig) Validate() error {
	if c.OrphanInterval <= 0 {
		c.OrphanInterval = time.Minute
	}
	if c.OrphanMaxAge <= 0 {
		c.OrphanMaxAge = 30 * time.Minute
	}
	if c.ArchiveInterval <= 0 {
		c.ArchiveInterval = time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	return nil
}

func splitNonEmpty(raw, fallback string) []string {
	if raw == "" {
		return []string{fallback}
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}
