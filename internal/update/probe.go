package update

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/ghsecrets/internal/github"
	"github.com/systmms/ghsecrets/internal/github/contracts"
)

// SecretStateProbe checks whether a secret already exists
type SecretStateProbe struct {
	client contracts.SecretsClient
}

// NewSecretStateProbe creates a probe backed by client
func NewSecretStateProbe(client contracts.SecretsClient) *SecretStateProbe {
	return &SecretStateProbe{client: client}
}

// Exists reports whether key exists in repo and, if GitHub returned one,
// when it was last updated. A 404 means the secret does not exist.
func (p *SecretStateProbe) Exists(ctx context.Context, repo Repository, key string) (*time.Time, bool, error) {
	meta, err := p.client.GetSecret(ctx, repo.Owner, repo.Name, key)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if meta.UpdatedAt.IsZero() {
		return nil, true, nil
	}
	updated := meta.UpdatedAt
	return &updated, true, nil
}
