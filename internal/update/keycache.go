package update

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/systmms/ghsecrets/internal/github/contracts"
	"github.com/systmms/ghsecrets/pkg/sealedbox"
)

// DefaultPrefetchParallelism bounds concurrent key fetches in Prefetch
const DefaultPrefetchParallelism = 4

// PublicKeyCache memoizes repository public keys for one batch. Keys are
// never persisted across batches because GitHub may rotate them.
type PublicKeyCache struct {
	client  contracts.SecretsClient
	metrics *Metrics

	mu    sync.RWMutex
	keys  map[Repository]PublicKeyInfo
	group singleflight.Group
}

// NewPublicKeyCache creates an empty cache backed by client
func NewPublicKeyCache(client contracts.SecretsClient, metrics *Metrics) *PublicKeyCache {
	return &PublicKeyCache{
		client:  client,
		metrics: metrics,
		keys:    make(map[Repository]PublicKeyInfo),
	}
}

// Get returns the key for repo, fetching it on first use. Failures are not
// cached. Concurrent callers for one repository share a single fetch.
func (c *PublicKeyCache) Get(ctx context.Context, repo Repository) (PublicKeyInfo, error) {
	id := repo.identity()

	if info, ok := c.lookup(id); ok {
		c.metrics.RecordKeyCache(true)
		return info, nil
	}

	v, err, _ := c.group.Do(id.Path(), func() (interface{}, error) {
		if info, ok := c.lookup(id); ok {
			return info, nil
		}

		c.metrics.RecordKeyCache(false)
		pk, err := c.client.GetPublicKey(ctx, id.Owner, id.Name)
		if err != nil {
			return nil, err
		}

		raw, err := sealedbox.ParsePublicKey(pk.Key)
		if err != nil {
			return nil, fmt.Errorf("public key for %s: %w", id.Path(), err)
		}

		info := PublicKeyInfo{KeyID: pk.KeyID, Key: *raw}
		c.mu.Lock()
		c.keys[id] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return PublicKeyInfo{}, err
	}
	return v.(PublicKeyInfo), nil
}

// Prefetch warms the cache for repos with at most parallelism concurrent
// fetches. Only an authentication failure is returned; other failures are
// left for the owning operation to hit and record.
func (c *PublicKeyCache) Prefetch(ctx context.Context, repos []Repository, parallelism int) error {
	if parallelism <= 0 {
		parallelism = DefaultPrefetchParallelism
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, repo := range repos {
		repo := repo
		if _, ok := c.lookup(repo.identity()); ok {
			continue
		}
		g.Go(func() error {
			_, err := c.Get(gctx, repo)
			if err != nil && Classify(err) == KindAuth {
				return &AuthAbortError{Repository: repo, Err: err}
			}
			return nil
		})
	}

	return g.Wait()
}

// Len returns the number of cached keys
func (c *PublicKeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Clear drops every cached key
func (c *PublicKeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[Repository]PublicKeyInfo)
}

func (c *PublicKeyCache) lookup(id Repository) (PublicKeyInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.keys[id]
	return info, ok
}
