package fakes

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/systmms/ghsecrets/internal/github"
	"github.com/systmms/ghsecrets/internal/github/contracts"
	"github.com/systmms/ghsecrets/internal/ratelimit"
)

// PutCall records one PutSecret invocation
type PutCall struct {
	Repo   string // owner/name
	Name   string
	Secret contracts.EncryptedSecret
}

// FakeGitHubClient is a test double for contracts.SecretsClient. It is safe
// for concurrent use. Repositories are keyed by "owner/name".
type FakeGitHubClient struct {
	mu sync.Mutex

	// Keys holds the public key per repository
	Keys map[string]*contracts.PublicKey

	// PrivateKeys holds the matching private keys so tests can open
	// submitted ciphertexts
	PrivateKeys map[string]*[32]byte

	// Secrets holds existing secrets per repository
	Secrets map[string]map[string]*contracts.SecretMetadata

	// KeyErrs, GetErrs and PutErrs queue errors returned by successive
	// calls. KeyErrs is keyed by repository, the others by "owner/name/KEY".
	KeyErrs map[string][]error
	GetErrs map[string][]error
	PutErrs map[string][]error

	// Limiter, when set, is consulted before every call like the real client
	Limiter *ratelimit.Limiter

	// Status is returned by RateLimit unless RateLimitErr is set
	Status       contracts.RateLimitStatus
	RateLimitErr error

	// Call tracking
	KeyCalls map[string]int
	GetCalls int
	PutCalls []PutCall
	Sequence []string

	// OnKeyFetch runs inside GetPublicKey before it returns (tests use it
	// to hold concurrent fetches open)
	OnKeyFetch func(repo string)
}

// NewFakeGitHubClient creates an empty fake
func NewFakeGitHubClient() *FakeGitHubClient {
	return &FakeGitHubClient{
		Keys:        make(map[string]*contracts.PublicKey),
		PrivateKeys: make(map[string]*[32]byte),
		Secrets:     make(map[string]map[string]*contracts.SecretMetadata),
		KeyErrs:     make(map[string][]error),
		GetErrs:     make(map[string][]error),
		PutErrs:     make(map[string][]error),
		KeyCalls:    make(map[string]int),
		Status:      contracts.RateLimitStatus{Limit: 5000, Remaining: 5000, Reset: time.Now().Add(time.Hour)},
	}
}

// AddRepository generates a key pair for repo ("owner/name")
func (f *FakeGitHubClient) AddRepository(repo string) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Keys[repo] = &contracts.PublicKey{
		KeyID: fmt.Sprintf("key-%s", repo),
		Key:   base64.StdEncoding.EncodeToString(pub[:]),
	}
	f.PrivateKeys[repo] = priv
}

// SetSecret marks a secret as existing
func (f *FakeGitHubClient) SetSecret(repo, name string, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Secrets[repo] == nil {
		f.Secrets[repo] = make(map[string]*contracts.SecretMetadata)
	}
	f.Secrets[repo][name] = &contracts.SecretMetadata{Name: name, CreatedAt: updatedAt, UpdatedAt: updatedAt}
}

// FailPublicKey queues errors for the next key fetches of repo
func (f *FakeGitHubClient) FailPublicKey(repo string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KeyErrs[repo] = append(f.KeyErrs[repo], errs...)
}

// FailProbe queues errors for the next probes of repo/name
func (f *FakeGitHubClient) FailProbe(repo, name string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := repo + "/" + name
	f.GetErrs[k] = append(f.GetErrs[k], errs...)
}

// FailPut queues errors for the next updates of repo/name
func (f *FakeGitHubClient) FailPut(repo, name string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := repo + "/" + name
	f.PutErrs[k] = append(f.PutErrs[k], errs...)
}

// KeyCallCount returns the number of key fetches for repo
func (f *FakeGitHubClient) KeyCallCount(repo string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.KeyCalls[repo]
}

// Puts returns a copy of the recorded updates
func (f *FakeGitHubClient) Puts() []PutCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PutCall(nil), f.PutCalls...)
}

// Calls returns the ordered call log ("key owner/name", "get owner/name/KEY", ...)
func (f *FakeGitHubClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Sequence...)
}

// GetPublicKey returns the repository public key
func (f *FakeGitHubClient) GetPublicKey(ctx context.Context, owner, repo string) (*contracts.PublicKey, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	path := owner + "/" + repo

	f.mu.Lock()
	f.KeyCalls[path]++
	f.Sequence = append(f.Sequence, "key "+path)
	err := pop(f.KeyErrs, path)
	key, ok := f.Keys[path]
	hook := f.OnKeyFetch
	f.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError("public key")
	}
	copied := *key
	return &copied, nil
}

// GetSecret returns secret metadata or a not-found error
func (f *FakeGitHubClient) GetSecret(ctx context.Context, owner, repo, name string) (*contracts.SecretMetadata, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	path := owner + "/" + repo

	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls++
	f.Sequence = append(f.Sequence, "get "+path+"/"+name)
	if err := pop(f.GetErrs, path+"/"+name); err != nil {
		return nil, err
	}
	if meta, ok := f.Secrets[path][name]; ok {
		copied := *meta
		return &copied, nil
	}
	return nil, NotFoundError("probe")
}

// PutSecret records the update
func (f *FakeGitHubClient) PutSecret(ctx context.Context, owner, repo, name string, secret contracts.EncryptedSecret) (bool, error) {
	if err := f.acquire(ctx); err != nil {
		return false, err
	}
	path := owner + "/" + repo

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Sequence = append(f.Sequence, "put "+path+"/"+name)
	if err := pop(f.PutErrs, path+"/"+name); err != nil {
		return false, err
	}

	f.PutCalls = append(f.PutCalls, PutCall{Repo: path, Name: name, Secret: secret})
	if f.Secrets[path] == nil {
		f.Secrets[path] = make(map[string]*contracts.SecretMetadata)
	}
	_, existed := f.Secrets[path][name]
	now := time.Now()
	f.Secrets[path][name] = &contracts.SecretMetadata{Name: name, CreatedAt: now, UpdatedAt: now}
	return !existed, nil
}

// RateLimit returns Status
func (f *FakeGitHubClient) RateLimit(ctx context.Context) (*contracts.RateLimitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RateLimitErr != nil {
		return nil, f.RateLimitErr
	}
	status := f.Status
	return &status, nil
}

func (f *FakeGitHubClient) acquire(ctx context.Context) error {
	if f.Limiter == nil {
		return ctx.Err()
	}
	return f.Limiter.Acquire(ctx)
}

func pop(queue map[string][]error, key string) error {
	errs := queue[key]
	if len(errs) == 0 {
		return nil
	}
	queue[key] = errs[1:]
	return errs[0]
}

// NotFoundError builds the error the real client returns for a 404
func NotFoundError(op string) error {
	return &github.APIError{Op: op, StatusCode: http.StatusNotFound, Message: "Not Found", Err: github.ErrNotFound}
}

// UnauthorizedError builds the error the real client returns for a 401
func UnauthorizedError(op string) error {
	return &github.APIError{Op: op, StatusCode: http.StatusUnauthorized, Message: "Bad credentials", Err: github.ErrUnauthorized}
}

// NetworkError builds a transport failure
func NetworkError(op string) error {
	return &github.APIError{Op: op, Err: fmt.Errorf("request failed: dial tcp: connection refused")}
}

// ValidationError builds the error the real client returns for a 422
func ValidationError(op string) error {
	return &github.APIError{Op: op, StatusCode: http.StatusUnprocessableEntity, Message: "Invalid request", Err: github.ErrValidation}
}

// Ensure FakeGitHubClient implements contracts.SecretsClient
var _ contracts.SecretsClient = (*FakeGitHubClient)(nil)
