// Package postgres implements the durable store (C1) over PostgreSQL
// using pgx directly: hand-written parameterized SQL rather than
// generated query code, since no code-generation step runs as part of
// this build.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rezkam/mono/internal/core"
)

// Store provides the PostgreSQL implementation of core.Storage.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Storage = (*Store)(nil)

// NewStore creates a new PostgreSQL store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool, for transaction
// management or raw queries outside the Storage interface.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// finalizeTx rolls back on error, commits on success.
func finalizeTx(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed", "original_error", *err, "rollback_error", rbErr)
			*err = fmt.Errorf("transaction failed: %w (rollback error: %v)", *err, rbErr)
		}
		return
	}
	*err = tx.Commit(ctx)
	if *err != nil {
		slog.ErrorContext(ctx, "transaction commit failed", "error", *err)
	}
}

// withTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise (including on panic, which is re-raised after
// rollback).
func (s *Store) withTx(ctx context.Context, operation string, fn func(tx pgx.Tx) error) (err error) {
	start := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed", "operation", operation, "panic", p, "rollback_error", rbErr)
			}
			panic(p)
		}
		finalizeTx(ctx, tx, &err)
		if err == nil {
			slog.DebugContext(ctx, "transaction completed", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
		}
	}()

	err = fn(tx)
	return
}
