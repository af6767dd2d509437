package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rezkam/mono/internal/domain"
)

// FindByShortToken retrieves an API key by its short token for validation.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	const query = `
		SELECT id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, last_used_at, expires_at
		FROM api_keys WHERE short_token = $1`

	var key domain.APIKey
	err := s.pool.QueryRow(ctx, query, shortToken).Scan(
		&key.ID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken, &key.LongSecretHash,
		&key.Name, &key.IsActive, &key.CreatedAt, &key.LastUsedAt, &key.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get API key: %w", err)
	}
	return &key, nil
}

// UpdateLastUsed bumps the last-used timestamp for an API key. Stale
// updates that lost a race against a later timestamp are treated as
// idempotent successes rather than errors.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	const query = `
		UPDATE api_keys SET last_used_at = $1
		WHERE id = $2 AND (last_used_at IS NULL OR last_used_at < $1)`

	tag, err := s.pool.Exec(ctx, query, timestamp, keyID)
	if err != nil {
		return fmt.Errorf("update last_used_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE id = $1)`, keyID).Scan(&exists); err != nil {
			return fmt.Errorf("check API key existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
	}
	return nil
}

// Create inserts a new API key row. The plaintext secret never reaches
// storage; key.LongSecretHash is already the BLAKE2b-256 digest.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	if _, err := uuid.Parse(key.ID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	const query = `
		INSERT INTO api_keys (
			id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		key.ID, key.KeyType, key.Service, key.Version, key.ShortToken, key.LongSecretHash,
		key.Name, key.IsActive, key.CreatedAt, key.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create API key: %w", err)
	}
	return nil
}
