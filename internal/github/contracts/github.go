package contracts

import (
	"context"
	"time"
)

// SecretsClient abstracts the GitHub Actions secrets API for testing.
// Every method consults the shared rate limiter before calling out.
type SecretsClient interface {
	// GetPublicKey returns the repository's current sealing key
	GetPublicKey(ctx context.Context, owner, repo string) (*PublicKey, error)

	// GetSecret returns secret metadata; the value is never readable.
	// A missing secret yields an error matching github.ErrNotFound.
	GetSecret(ctx context.Context, owner, repo, name string) (*SecretMetadata, error)

	// PutSecret creates or replaces a secret. created reports 201 vs 204.
	PutSecret(ctx context.Context, owner, repo, name string, secret EncryptedSecret) (created bool, err error)

	// RateLimit reports the core API budget (for doctor)
	RateLimit(ctx context.Context) (*RateLimitStatus, error)
}

// PublicKey is the repository key as published by GitHub
type PublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"` // base64
}

// SecretMetadata describes an existing secret
type SecretMetadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EncryptedSecret is the PUT body
type EncryptedSecret struct {
	EncryptedValue string `json:"encrypted_value"`
	KeyID          string `json:"key_id"`
}

// RateLimitStatus is the core resource from GET /rate_limit
type RateLimitStatus struct {
	Limit     int
	Remaining int
	Used      int
	Reset     time.Time
}
