package update

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/systmms/ghsecrets/internal/github/contracts"
	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/secure"
	"github.com/systmms/ghsecrets/internal/validation"
	"github.com/systmms/ghsecrets/pkg/sealedbox"
)

// Options configures a Batch
type Options struct {
	// Client issues every GitHub call. It must be backed by the batch's
	// rate limiter. Required.
	Client contracts.SecretsClient

	// Confirm decides overwrites of existing secrets. Defaults to
	// AlwaysDecline so nothing is overwritten without an explicit source.
	Confirm ConfirmationSource

	Observer Observer
	Metrics  *Metrics
	Logger   *logging.Logger

	// Prefetch warms the key cache concurrently before each round
	Prefetch            bool
	PrefetchParallelism int

	// Rand is the entropy source for sealing. Defaults to crypto/rand.
	Rand io.Reader
}

type operation struct {
	repo    Repository
	key     string
	attempt int
}

// Batch owns all per-run state: the key cache, the retained secret values
// and the set of unresolved operations. It is not safe for concurrent Run
// or Retry calls; Close may be called from any goroutine.
type Batch struct {
	client      contracts.SecretsClient
	confirm     ConfirmationSource
	observer    Observer
	metrics     *Metrics
	logger      *logging.Logger
	prefetch    bool
	parallelism int
	rand        io.Reader

	cache *PublicKeyCache
	probe *SecretStateProbe

	repos    []Repository
	keys     []string
	repoByID map[Repository]Repository
	invalid  map[string]error

	mu         sync.Mutex
	values     map[string]*secure.SecretValue
	refs       map[string]int
	unresolved map[pairKey]bool
	ran        bool
	closed     bool
}

// NewBatch plans one operation per (repository, secret) pair. Repositories
// are de-duplicated by identity, keeping the first occurrence; for a
// repeated secret key the last value wins. Each value is moved into an
// enclave and the caller's slice is wiped.
func NewBatch(opts Options, repos []Repository, secrets []SecretPair) (*Batch, error) {
	if opts.Client == nil {
		return nil, errors.New("batch requires a GitHub client")
	}
	if len(repos) == 0 {
		return nil, errors.New("no repositories selected")
	}
	if len(secrets) == 0 {
		return nil, errors.New("no secrets provided")
	}

	b := &Batch{
		client:      opts.Client,
		confirm:     opts.Confirm,
		observer:    opts.Observer,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		prefetch:    opts.Prefetch,
		parallelism: opts.PrefetchParallelism,
		rand:        opts.Rand,
		repoByID:    make(map[Repository]Repository),
		invalid:     make(map[string]error),
		values:      make(map[string]*secure.SecretValue),
		refs:        make(map[string]int),
		unresolved:  make(map[pairKey]bool),
	}
	if b.confirm == nil {
		b.confirm = AlwaysDecline
	}
	if b.observer == nil {
		b.observer = nopObserver{}
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	if b.rand == nil {
		b.rand = rand.Reader
	}
	b.cache = NewPublicKeyCache(b.client, b.metrics)
	b.probe = NewSecretStateProbe(b.client)

	for _, repo := range repos {
		id := repo.identity()
		if _, ok := b.repoByID[id]; ok {
			continue
		}
		b.repoByID[id] = repo
		b.repos = append(b.repos, repo)
	}

	seen := make(map[string]bool)
	for _, pair := range secrets {
		if !seen[pair.Key] {
			seen[pair.Key] = true
			b.keys = append(b.keys, pair.Key)
		}
		if old := b.values[pair.Key]; old != nil {
			old.Destroy()
			delete(b.values, pair.Key)
		}
		delete(b.invalid, pair.Key)

		if err := validatePair(pair); err != nil {
			b.invalid[pair.Key] = err
			secure.Wipe(pair.Value)
			continue
		}
		value, err := secure.NewSecretValue(pair.Value)
		if err != nil {
			b.invalid[pair.Key] = err
			continue
		}
		b.values[pair.Key] = value
	}

	for _, repo := range b.repos {
		for _, key := range b.keys {
			b.unresolved[pairKey{repo: repo.identity(), key: key}] = true
			if b.values[key] != nil {
				b.refs[key]++
			}
		}
	}

	return b, nil
}

func validatePair(pair SecretPair) error {
	if err := validation.SecretName(pair.Key); err != nil {
		return err
	}
	return validation.SecretValue(pair.Value)
}

// Repositories returns the de-duplicated repositories in selection order
func (b *Batch) Repositories() []Repository {
	return append([]Repository(nil), b.repos...)
}

// Keys returns the de-duplicated secret keys in input order
func (b *Batch) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Size returns the number of planned operations
func (b *Batch) Size() int {
	return len(b.repos) * len(b.keys)
}

// Run executes every planned operation once. On an authentication failure
// it stops and returns the results gathered so far with an
// *AuthAbortError.
func (b *Batch) Run(ctx context.Context) ([]OperationResult, error) {
	b.mu.Lock()
	if b.ran {
		b.mu.Unlock()
		return nil, errors.New("batch has already run; use Retry for failed operations")
	}
	b.ran = true
	b.mu.Unlock()

	ops := make([]operation, 0, b.Size())
	for _, repo := range b.repos {
		for _, key := range b.keys {
			ops = append(ops, operation{repo: repo, key: key, attempt: 1})
		}
	}
	return b.execute(ctx, ops, false)
}

func (b *Batch) execute(ctx context.Context, ops []operation, retry bool) ([]OperationResult, error) {
	if b.isClosed() {
		return nil, ErrBatchClosed
	}

	results := make([]OperationResult, 0, len(ops))

	if b.prefetch {
		if err := b.cache.Prefetch(ctx, b.prefetchTargets(ops), b.parallelism); err != nil {
			var authErr *AuthAbortError
			if errors.As(err, &authErr) {
				b.logger.Debug("batch aborted: %v", authErr)
				b.metrics.RecordBatch(retry, true)
				return results, authErr
			}
		}
	}

	aborted := false
	for _, op := range ops {
		if !aborted && ctx.Err() != nil {
			aborted = true
		}
		if aborted {
			results = append(results, b.cancelled(op))
			continue
		}

		result, stop, err := b.runOperation(ctx, op)
		if err != nil {
			b.logger.Debug("batch aborted: %v", err)
			b.metrics.RecordBatch(retry, true)
			return results, err
		}
		results = append(results, result)
		if stop {
			aborted = true
		}
	}

	b.metrics.RecordBatch(retry, aborted)
	return results, nil
}

// runOperation drives one operation through the state machine. stop asks
// the caller to cancel the remaining operations; a non-nil error is an
// *AuthAbortError and produces no result.
func (b *Batch) runOperation(ctx context.Context, op operation) (OperationResult, bool, error) {
	start := time.Now()
	res := OperationResult{Repository: op.repo, SecretKey: op.key, Attempt: op.attempt}
	b.transition(op, StatePending)

	fail := func(cause error) (OperationResult, bool, error) {
		opErr := newOperationError(cause)
		if opErr.Kind == KindAuth {
			return OperationResult{}, false, &AuthAbortError{Repository: op.repo, SecretKey: op.key, Err: cause}
		}
		res.Outcome = OutcomeFailed
		res.Err = opErr
		return b.done(res, start), false, nil
	}

	if err := b.invalid[op.key]; err != nil {
		return fail(err)
	}

	b.transition(op, StateProbing)
	previous, exists, err := b.probe.Exists(ctx, op.repo, op.key)
	if err != nil {
		return fail(err)
	}
	res.PreviouslyExisted = exists
	res.PreviousUpdate = previous

	if exists {
		b.transition(op, StateAwaitingConfirmation)
		asked := time.Now()
		decision, err := b.confirm.Confirm(ctx, ConfirmationRequest{
			Repository:     op.repo,
			SecretKey:      op.key,
			PreviousUpdate: previous,
		})
		start = start.Add(time.Since(asked))

		switch {
		case err != nil:
			res.Outcome = OutcomeFailed
			res.Err = &OperationError{Kind: KindCancelled, Message: fmt.Sprintf("confirmation failed: %v", err), Err: ErrCancelled}
			return b.done(res, start), true, nil
		case decision == Decline:
			res.Outcome = OutcomeSkipped
			b.resolve(op)
			return b.done(res, start), false, nil
		case decision == Abort:
			res.Outcome = OutcomeFailed
			res.Err = &OperationError{Kind: KindCancelled, Message: "aborted at confirmation", Err: ErrCancelled}
			return b.done(res, start), true, nil
		}
	}

	b.transition(op, StateEncrypting)
	key, err := b.cache.Get(ctx, op.repo)
	if err != nil {
		return fail(err)
	}
	encrypted, err := b.encrypt(op.key, key)
	if err != nil {
		return fail(err)
	}

	b.transition(op, StateSubmitting)
	if _, err := b.client.PutSecret(ctx, op.repo.Owner, op.repo.Name, op.key, contracts.EncryptedSecret{
		EncryptedValue: encrypted.EncryptedValue,
		KeyID:          encrypted.KeyID,
	}); err != nil {
		return fail(err)
	}

	res.Outcome = OutcomeSuccess
	b.resolve(op)
	return b.done(res, start), false, nil
}

func (b *Batch) encrypt(key string, pk PublicKeyInfo) (EncryptedSecret, error) {
	b.mu.Lock()
	value := b.values[key]
	b.mu.Unlock()

	if value == nil {
		return EncryptedSecret{}, fmt.Errorf("%w: value for %s is no longer retained", errEncryption, key)
	}

	var out EncryptedSecret
	err := value.Use(func(plaintext []byte) error {
		sealed, err := sealedbox.SealWithRand(b.rand, plaintext, &pk.Key)
		if err != nil {
			return err
		}
		out = EncryptedSecret{KeyID: pk.KeyID, EncryptedValue: base64.StdEncoding.EncodeToString(sealed)}
		return nil
	})
	if err != nil {
		return EncryptedSecret{}, fmt.Errorf("%w: %v", errEncryption, err)
	}
	return out, nil
}

func (b *Batch) cancelled(op operation) OperationResult {
	res := OperationResult{
		Repository: op.repo,
		SecretKey:  op.key,
		Outcome:    OutcomeFailed,
		Attempt:    op.attempt,
		Err:        &OperationError{Kind: KindCancelled, Message: "not started: batch aborted", Err: ErrCancelled},
	}
	return b.done(res, time.Now())
}

func (b *Batch) done(res OperationResult, start time.Time) OperationResult {
	res.Duration = time.Since(start)
	b.observer.StateChanged(res.Repository, res.SecretKey, StateDone)
	b.observer.Completed(res)
	b.metrics.RecordOperation(res)
	if res.Err != nil {
		b.logger.Debug("%s %s: %s (%s)", res.Repository.Path(), res.SecretKey, res.Outcome, res.Err)
	} else {
		b.logger.Debug("%s %s: %s", res.Repository.Path(), res.SecretKey, res.Outcome)
	}
	return res
}

func (b *Batch) transition(op operation, state State) {
	b.observer.StateChanged(op.repo, op.key, state)
}

// resolve marks an operation final and drops its value once no other
// unresolved operation needs it.
func (b *Batch) resolve(op operation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pk := pairKey{repo: op.repo.identity(), key: op.key}
	if !b.unresolved[pk] {
		return
	}
	delete(b.unresolved, pk)

	if _, ok := b.refs[op.key]; !ok {
		return
	}
	b.refs[op.key]--
	if b.refs[op.key] <= 0 {
		delete(b.refs, op.key)
		if value := b.values[op.key]; value != nil {
			value.Destroy()
			delete(b.values, op.key)
		}
	}
}

func (b *Batch) prefetchTargets(ops []operation) []Repository {
	seen := make(map[Repository]bool)
	var repos []Repository
	for _, op := range ops {
		if b.invalid[op.key] != nil {
			continue
		}
		id := op.repo.identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		repos = append(repos, op.repo)
	}
	return repos
}

// Retained returns how many secret values the batch still holds
func (b *Batch) Retained() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// Unresolved returns how many operations have not succeeded or been skipped
func (b *Batch) Unresolved() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unresolved)
}

// Close destroys every retained value and the key cache. It is idempotent.
func (b *Batch) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for key, value := range b.values {
		value.Destroy()
		delete(b.values, key)
	}
	b.refs = make(map[string]int)
	b.cache.Clear()
}

func (b *Batch) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
