package domain

import "time"

// APIKey is an aggregate root representing a bearer credential for the
// thin CRUD API fronting the scheduler.
//
// API keys use a split-token pattern:
//   - ShortToken: indexed, used for O(1) lookup.
//   - LongSecretHash: BLAKE2b-256 hash, used for verification.
//   - The plaintext secret is never stored, only shown once at creation.
type APIKey struct {
	ID             string
	KeyType        string // "sk" = secret key, "pk" = public key
	Service        string
	Version        string
	ShortToken     string
	LongSecretHash string
	Name           string
	IsActive       bool
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
}
