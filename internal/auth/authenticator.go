// Package auth validates bearer API keys presented to the thin CRUD
// surface in front of the scheduler's durable store.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/infrastructure/keygen"
)

// Repository is the persistence boundary the authenticator depends on.
type Repository interface {
	FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error
	Create(ctx context.Context, key *domain.APIKey) error
}

// Config tunes the authenticator's background behavior.
type Config struct {
	// OperationTimeout bounds each async last-used update; 0 means no
	// per-operation timeout.
	OperationTimeout time.Duration
	// UpdateQueueSize is the buffer depth of the last-used update
	// channel; 0 selects a default.
	UpdateQueueSize int
}

func (c Config) withDefaults() Config {
	if c.UpdateQueueSize <= 0 {
		c.UpdateQueueSize = 256
	}
	return c
}

// lastUsedUpdate is a deferred, best-effort timestamp bump queued so that
// the hot validation path never blocks on a write.
type lastUsedUpdate struct {
	keyID string
	at    time.Time
}

// Authenticator verifies presented API keys against their stored hash
// and asynchronously records last-used timestamps.
type Authenticator struct {
	repo Repository
	cfg  Config

	lastUsedUpdates chan lastUsedUpdate
	shutdownChan    chan struct{}
	done            chan struct{}
}

// NewAuthenticator constructs an Authenticator and starts its background
// last-used flush loop. Call Shutdown to stop it during shutdown.
func NewAuthenticator(repo Repository, cfg Config) *Authenticator {
	cfg = cfg.withDefaults()
	a := &Authenticator{
		repo:            repo,
		cfg:             cfg,
		lastUsedUpdates: make(chan lastUsedUpdate, cfg.UpdateQueueSize),
		shutdownChan:    make(chan struct{}),
		done:            make(chan struct{}),
	}
	go a.processLastUsedUpdates()
	return a
}

// ValidateAPIKey parses and verifies apiKey, returning the matched
// domain.APIKey on success. The short token selects the candidate row in
// O(1); the long secret is then verified with a constant-time compare
// against its stored BLAKE2b-256 hash. Both the lookup-miss and
// hash-mismatch paths compute the secret's hash inside
// subtle.WithDataIndependentTiming, so a missing row and a wrong secret
// are indistinguishable to a timing attacker.
func (a *Authenticator) ValidateAPIKey(ctx context.Context, apiKey string) (*domain.APIKey, error) {
	parts, err := keygen.ParseAPIKey(apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	key, lookupErr := a.repo.FindByShortToken(ctx, parts.ShortToken)
	if lookupErr != nil && !errors.Is(lookupErr, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup API key: %w", lookupErr)
	}

	storedHash := dummyLongSecretHash
	if key != nil {
		storedHash = key.LongSecretHash
	}

	var match bool
	subtle.WithDataIndependentTiming(func() {
		presentedHash := keygen.HashSecret(parts.LongSecret)
		match = subtle.ConstantTimeCompare([]byte(presentedHash), []byte(storedHash)) == 1
	})

	if key == nil || !match {
		return nil, domain.ErrUnauthorized
	}
	if !key.IsActive {
		return nil, domain.ErrUnauthorized
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now().UTC()) {
		return nil, domain.ErrUnauthorized
	}

	select {
	case a.lastUsedUpdates <- lastUsedUpdate{keyID: key.ID, at: time.Now().UTC()}:
	default:
		slog.WarnContext(ctx, "last-used update queue full, dropping update", "key_id", key.ID)
	}

	return key, nil
}

// dummyLongSecretHash stands in for a real stored hash on lookup misses,
// so HashSecret and ConstantTimeCompare still run against data of the
// same shape.
const dummyLongSecretHash = "0000000000000000000000000000000000000000000000000000000000000000"

func (a *Authenticator) processLastUsedUpdates() {
	defer close(a.done)
	for {
		select {
		case upd := <-a.lastUsedUpdates:
			ctx := context.Background()
			var cancel context.CancelFunc
			if a.cfg.OperationTimeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, a.cfg.OperationTimeout)
			}
			if err := a.repo.UpdateLastUsed(ctx, upd.keyID, upd.at); err != nil {
				slog.ErrorContext(ctx, "failed to update API key last_used_at", "key_id", upd.keyID, "error", err)
			}
			if cancel != nil {
				cancel()
			}
		case <-a.shutdownChan:
			return
		}
	}
}

// Shutdown stops the background flush loop and waits for it to exit.
func (a *Authenticator) Shutdown(ctx context.Context) error {
	close(a.shutdownChan)
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
