// Command worker runs the five background loops that make up the
// scheduler's dispatch pipeline: the recurrence materializer, the
// queue populator, the job executor, the failure watcher, and the
// orphan/archive cleanup sweep. Each runs independently against the
// same durable store and Redis queue, and all five are shut down
// together on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rezkam/mono/internal/alert"
	"github.com/rezkam/mono/internal/cleanup"
	"github.com/rezkam/mono/internal/config"
	"github.com/rezkam/mono/internal/executor"
	"github.com/rezkam/mono/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/mono/internal/lock"
	"github.com/rezkam/mono/internal/materializer"
	"github.com/rezkam/mono/internal/populator"
	"github.com/rezkam/mono/internal/queue"
	"github.com/rezkam/mono/internal/sandbox"
	"github.com/rezkam/mono/internal/storage/archive"
	"github.com/rezkam/mono/internal/watcher"
	"github.com/rezkam/mono/pkg/observability"
)

func main() {
	sandbox.MaybeReexec()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, cfg.Observability.ServiceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lp.Shutdown(context.Background())
	slog.SetDefault(logger)

	slog.InfoContext(ctx, "starting scheduler worker")

	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	q := queue.New(redisClient)
	locker := lock.New(redisClient)

	sb := sandbox.New(sandbox.Config{
		MaxMemoryMB:    cfg.Executor.MaxMemoryMB,
		MaxCPUPercent:  cfg.Executor.MaxCPUPercent,
		Timeout:        cfg.Executor.Timeout,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
	})
	if cfg.Executor.MaxMemoryMB > 0 {
		if err := sb.ValidateResources(); err != nil {
			return fmt.Errorf("sandbox resource precondition: %w", err)
		}
	}

	var sink archive.Sink
	if cfg.Cleanup.ArchiveBucket != "" {
		gcsSink, err := archive.NewStore(ctx, cfg.Cleanup.ArchiveBucket)
		if err != nil {
			return fmt.Errorf("create archive sink: %w", err)
		}
		defer gcsSink.Close()
		sink = gcsSink
	}

	mat := materializer.New(store, q, materializer.Config{
		LookAhead:     cfg.Materializer.LookAhead,
		CycleInterval: cfg.Materializer.CycleInterval,
		BatchSize:     cfg.Materializer.BatchSize,
		QueueName:     cfg.Materializer.QueueName,
	})
	pop := populator.New(store, q, populator.Config{
		PollInterval:  cfg.Populator.PollInterval,
		BatchSize:     cfg.Populator.BatchSize,
		QueueName:     cfg.Populator.QueueName,
		HighWaterMark: cfg.Populator.HighWaterMark,
	})
	exec := executor.New(store, q, locker, sb, executor.Config{
		ConcurrencyLimit:  cfg.Executor.ConcurrencyLimit,
		QueueNames:        cfg.Executor.QueueNames,
		LockTTL:           cfg.Executor.LockTTL,
		EmptyQueueBackoff: cfg.Executor.EmptyQueueBackoff,
		WorkerID:          workerID(),
	})
	alerts := alert.NewManager(cfg.Watcher.AlertCooldown, alert.LogChannel{})
	watch := watcher.New(store, q, alerts, watcher.Config{
		ScanInterval:   cfg.Watcher.ScanInterval,
		InitialBackoff: cfg.Watcher.InitialBackoff,
		MaxBackoff:     cfg.Watcher.MaxBackoff,
	})
	clean := cleanup.New(store, sink, cleanup.Config{
		OrphanInterval:  cfg.Cleanup.OrphanInterval,
		OrphanMaxAge:    cfg.Cleanup.OrphanMaxAge,
		ArchiveInterval: cfg.Cleanup.ArchiveInterval,
		Retention:       cfg.Cleanup.Retention,
	})

	loops := map[string]func(context.Context) error{
		"materializer": mat.Run,
		"populator":    pop.Run,
		"executor":     exec.Run,
		"watcher":      watch.Run,
		"cleanup":      clean.Run,
	}

	var wg sync.WaitGroup
	for name, runLoop := range loops {
		wg.Add(1)
		go func(name string, runLoop func(context.Context) error) {
			defer wg.Done()
			if err := runLoop(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "loop exited unexpectedly", "loop", name, "error", err)
			}
		}(name, runLoop)
	}

	<-ctx.Done()
	slog.InfoContext(ctx, "shutting down worker loops")
	wg.Wait()
	slog.InfoContext(context.Background(), "worker shutdown complete")

	return nil
}

// workerID identifies this process in the worker_id column of jobs it
// claims; the hostname is unique enough within a deployment and avoids
// pulling in a UUID just to label log lines.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return host
}
