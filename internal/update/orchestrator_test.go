package update_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/ratelimit"
	"github.com/systmms/ghsecrets/internal/update"
	"github.com/systmms/ghsecrets/tests/fakes"
)

func TestNewSecretIsCreated(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	confirm := &scriptedConfirm{}
	b := newBatch(t, update.Options{Client: fake, Confirm: confirm}, []update.Repository{repoAPI}, pairs("API_KEY", "s3cr3t"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, update.OutcomeSuccess, r.Outcome)
	assert.Nil(t, r.Err)
	assert.False(t, r.PreviouslyExisted)
	assert.Nil(t, r.PreviousUpdate)
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, repoAPI, r.Repository)
	assert.Empty(t, confirm.requests)

	s := update.Fold(results)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 0, s.Failed)

	puts := fake.Puts()
	require.Len(t, puts, 1)
	assert.Equal(t, "acme/api", puts[0].Repo)
	assert.Equal(t, "API_KEY", puts[0].Name)
	assert.Equal(t, "key-acme/api", puts[0].Secret.KeyID)
	assert.Equal(t, "s3cr3t", openPut(t, fake, puts[0]))
}

func TestDeclinedOverwriteIsSkipped(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake.SetSecret("acme/api", "API_KEY", updated)

	confirm := &scriptedConfirm{answers: []update.Decision{update.Decline}}
	b := newBatch(t, update.Options{Client: fake, Confirm: confirm}, []update.Repository{repoAPI}, pairs("API_KEY", "s3cr3t"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, update.OutcomeSkipped, r.Outcome)
	assert.Nil(t, r.Err)
	assert.True(t, r.PreviouslyExisted)
	require.NotNil(t, r.PreviousUpdate)
	assert.True(t, r.PreviousUpdate.Equal(updated))

	require.Len(t, confirm.requests, 1)
	assert.Equal(t, "API_KEY", confirm.requests[0].SecretKey)
	assert.Equal(t, repoAPI, confirm.requests[0].Repository)
	require.NotNil(t, confirm.requests[0].PreviousUpdate)
	assert.True(t, confirm.requests[0].PreviousUpdate.Equal(updated))

	s := update.Fold(results)
	assert.Equal(t, 0, s.Successful)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Empty(t, fake.Puts())
	assert.Zero(t, fake.KeyCallCount("acme/api"), "declined operations never fetch a key")
}

func TestKeyFetchFailureIsRetried(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	fake.FailPublicKey("acme/web", fakes.NetworkError("public key"))

	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI, repoWeb}, pairs("DEPLOY_TOKEN", "value-1"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, update.OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, update.OutcomeFailed, results[1].Outcome)
	require.NotNil(t, results[1].Err)
	assert.Equal(t, update.KindNetwork, results[1].Err.Kind)
	assert.Equal(t, repoWeb, results[1].Repository)

	before := len(fake.Calls())
	retried, err := b.Retry(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, repoWeb, retried[0].Repository)
	assert.Equal(t, update.OutcomeSuccess, retried[0].Outcome)
	assert.Equal(t, 2, retried[0].Attempt)

	for _, call := range fake.Calls()[before:] {
		assert.NotContains(t, call, "acme/api", "retry must only touch the failed repository")
	}

	merged := update.Merge(results, retried)
	s := update.Fold(merged)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 0, s.Failed)

	again, err := b.Retry(context.Background(), merged)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)

	puts := fake.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, "value-1", openPut(t, fake, puts[1]))
}

func TestAuthFailureOnFirstKeyFetchAbortsBatch(t *testing.T) {
	t.Parallel()

	for _, prefetch := range []bool{false, true} {
		prefetch := prefetch
		t.Run(fmt.Sprintf("prefetch=%v", prefetch), func(t *testing.T) {
			t.Parallel()

			fake := newFake(repoAPI, repoWeb)
			fake.FailPublicKey("acme/api", fakes.UnauthorizedError("public key"))

			b := newBatch(t, update.Options{Client: fake, Prefetch: prefetch},
				[]update.Repository{repoAPI, repoWeb}, pairs("A", "1", "B", "2"))

			results, err := b.Run(context.Background())
			require.Error(t, err)
			assert.Empty(t, results)

			var authErr *update.AuthAbortError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, "acme/api", authErr.Repository.Path())
			assert.Equal(t, update.KindAuth, update.Classify(err))
			assert.Empty(t, fake.Puts())
		})
	}
}

func TestAuthErrorReturnsEarlierResults(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	fake.FailPut("acme/web", "A", fakes.UnauthorizedError("update"))

	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI, repoWeb, repoOps}, pairs("A", "1"))

	results, err := b.Run(context.Background())
	var authErr *update.AuthAbortError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "A", authErr.SecretKey)

	require.Len(t, results, 1)
	assert.Equal(t, repoAPI, results[0].Repository)
	assert.Equal(t, update.OutcomeSuccess, results[0].Outcome)
	assert.NotContains(t, fake.Calls(), "get acme-ops/infra/A")
}

func TestAuthAbortIsNotLogged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prefetch bool
		setup    func(*fakes.FakeGitHubClient)
	}{
		{name: "prefetch", prefetch: true, setup: func(f *fakes.FakeGitHubClient) {
			f.FailPublicKey("acme/web", fakes.UnauthorizedError("public key"))
		}},
		{name: "submit", setup: func(f *fakes.FakeGitHubClient) {
			f.FailPut("acme/web", "A", fakes.UnauthorizedError("update"))
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			fake := newFake(repoAPI, repoWeb)
			tt.setup(fake)

			b := newBatch(t, update.Options{
				Client:   fake,
				Prefetch: tt.prefetch,
				Logger:   logging.NewWithWriter(&buf, false, true),
			}, []update.Repository{repoAPI, repoWeb}, pairs("A", "1"))

			_, err := b.Run(context.Background())
			var authErr *update.AuthAbortError
			require.True(t, errors.As(err, &authErr))
			assert.Empty(t, buf.String(), "the returned error is the only report of the abort")
		})
	}
}

func TestConfirmationRequestedIffSecretExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		exists      bool
		decision    update.Decision
		wantConfirm int
		wantOutcome update.Outcome
	}{
		{name: "new secret", exists: false, wantConfirm: 0, wantOutcome: update.OutcomeSuccess},
		{name: "existing approved", exists: true, decision: update.Approve, wantConfirm: 1, wantOutcome: update.OutcomeSuccess},
		{name: "existing declined", exists: true, decision: update.Decline, wantConfirm: 1, wantOutcome: update.OutcomeSkipped},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFake(repoAPI)
			if tt.exists {
				fake.SetSecret("acme/api", "KEY", time.Now().Add(-time.Hour))
			}
			confirm := &scriptedConfirm{answers: []update.Decision{tt.decision}}
			b := newBatch(t, update.Options{Client: fake, Confirm: confirm}, []update.Repository{repoAPI}, pairs("KEY", "v"))

			results, err := b.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Len(t, confirm.requests, tt.wantConfirm)
			assert.Equal(t, tt.wantOutcome, results[0].Outcome)
			assert.Equal(t, tt.exists, results[0].PreviouslyExisted)
		})
	}
}

func TestDefaultConfirmationDeclines(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	fake.SetSecret("acme/api", "KEY", time.Now())
	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI}, pairs("KEY", "v"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, update.OutcomeSkipped, results[0].Outcome)
}

func TestAbortCancelsRemainingOperations(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	fake.SetSecret("acme/api", "B", time.Now())

	confirm := &scriptedConfirm{answers: []update.Decision{update.Abort}}
	b := newBatch(t, update.Options{Client: fake, Confirm: confirm},
		[]update.Repository{repoAPI, repoWeb}, pairs("A", "1", "B", "2", "C", "3"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, update.OutcomeSuccess, results[0].Outcome)
	for _, r := range results[1:] {
		assert.Equal(t, update.OutcomeFailed, r.Outcome, "%s %s", r.Repository.Path(), r.SecretKey)
		require.NotNil(t, r.Err)
		assert.Equal(t, update.KindCancelled, r.Err.Kind)
	}

	for _, call := range fake.Calls() {
		assert.NotContains(t, call, "acme/web", "no operation starts after abort")
	}

	// Cancelled operations are failures and can be retried.
	retried, err := b.Retry(context.Background(), results)
	require.NoError(t, err)
	assert.Len(t, retried, 5)
}

func TestCancelledContextResolvesAsCancelled(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI}, pairs("A", "1", "B", "2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := b.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, update.OutcomeFailed, r.Outcome)
		assert.Equal(t, update.KindCancelled, r.Err.Kind)
	}
	assert.Empty(t, fake.Calls())
}

func TestCancelDuringConfirmation(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	fake.SetSecret("acme/api", "A", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	confirm := update.ConfirmFunc(func(ctx context.Context, req update.ConfirmationRequest) (update.Decision, error) {
		cancel()
		return update.Decline, ctx.Err()
	})

	b := newBatch(t, update.Options{Client: fake, Confirm: confirm}, []update.Repository{repoAPI}, pairs("A", "1", "B", "2"))
	results, err := b.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, update.KindCancelled, results[0].Err.Kind)
	assert.Equal(t, update.KindCancelled, results[1].Err.Kind)
}

func TestFailureIsolation(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	fake.FailPut("acme/api", "B", fakes.ValidationError("update"))
	fake.FailProbe("acme/web", "A", fakes.NetworkError("probe"))

	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI, repoWeb}, pairs("A", "1", "B", "2"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	got := map[string]update.OperationResult{}
	for _, r := range results {
		got[r.Repository.Path()+"/"+r.SecretKey] = r
	}

	assert.Equal(t, update.OutcomeSuccess, got["acme/api/A"].Outcome)
	assert.Equal(t, update.OutcomeFailed, got["acme/api/B"].Outcome)
	assert.Equal(t, update.KindValidation, got["acme/api/B"].Err.Kind)
	assert.Equal(t, update.OutcomeFailed, got["acme/web/A"].Outcome)
	assert.Equal(t, update.KindNetwork, got["acme/web/A"].Err.Kind)
	assert.Equal(t, update.OutcomeSuccess, got["acme/web/B"].Outcome)
}

func TestInvalidPairFailsWithoutNetwork(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	secrets := []update.SecretPair{
		{Key: "GITHUB_TOKEN", Value: []byte("x")},
		{Key: "EMPTY", Value: nil},
		{Key: "1BAD", Value: []byte("x")},
		{Key: "GOOD", Value: []byte("x")},
	}
	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI}, secrets)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results[:3] {
		assert.Equal(t, update.OutcomeFailed, r.Outcome, r.SecretKey)
		assert.Equal(t, update.KindValidation, r.Err.Kind, r.SecretKey)
	}
	assert.Equal(t, update.OutcomeSuccess, results[3].Outcome)
	assert.Equal(t, []string{"get acme/api/GOOD", "key acme/api", "put acme/api/GOOD"}, fake.Calls())
}

func TestPublicKeyFetchedOncePerRepository(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	b := newBatch(t, update.Options{Client: fake, Prefetch: true},
		[]update.Repository{repoAPI, repoWeb}, pairs("A", "1", "B", "2", "C", "3"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.Equal(t, 1, fake.KeyCallCount("acme/api"))
	assert.Equal(t, 1, fake.KeyCallCount("acme/web"))
}

func TestEveryPairGetsExactlyOneResult(t *testing.T) {
	t.Parallel()

	repos := []update.Repository{repoAPI, repoWeb, repoOps}
	fake := newFake(repos...)
	fake.SetSecret("acme/api", "B", time.Now())
	fake.SetSecret("acme/web", "C", time.Now())
	fake.FailPublicKey("acme-ops/infra", fakes.NetworkError("public key"))
	fake.FailPut("acme/web", "A", fakes.ValidationError("update"))

	confirm := &scriptedConfirm{answers: []update.Decision{update.Approve, update.Decline}}
	b := newBatch(t, update.Options{Client: fake, Confirm: confirm}, repos, pairs("A", "1", "B", "2", "C", "3", "bad-name", "4"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, len(repos)*4)

	seen := map[string]int{}
	for _, r := range results {
		seen[r.Repository.Path()+"/"+r.SecretKey]++
	}
	assert.Len(t, seen, len(repos)*4)
	for pair, n := range seen {
		assert.Equal(t, 1, n, pair)
	}

	s := update.Fold(results)
	assert.Equal(t, s.Total, s.Successful+s.Skipped+s.Failed)
	assert.Equal(t, 1, s.Skipped)

	// Enumeration order is repository-major.
	assert.Equal(t, "acme/api", results[0].Repository.Path())
	assert.Equal(t, "A", results[0].SecretKey)
	assert.Equal(t, "B", results[1].SecretKey)
	assert.Equal(t, "acme/web", results[4].Repository.Path())
}

func TestStateSequence(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	fake.SetSecret("acme/api", "OLD", time.Now())

	rec := &recorder{}
	b := newBatch(t, update.Options{Client: fake, Confirm: update.AlwaysApprove, Observer: rec},
		[]update.Repository{repoAPI}, pairs("NEW", "1", "OLD", "2"))

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []update.State{
		update.StatePending, update.StateProbing, update.StateEncrypting, update.StateSubmitting, update.StateDone,
	}, rec.statesFor("acme/api", "NEW"))
	assert.Equal(t, []update.State{
		update.StatePending, update.StateProbing, update.StateAwaitingConfirmation,
		update.StateEncrypting, update.StateSubmitting, update.StateDone,
	}, rec.statesFor("acme/api", "OLD"))
	assert.Len(t, rec.completed, 2)
}

func TestValuesDroppedWhenResolved(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI, repoWeb)
	fake.FailPut("acme/web", "B", fakes.NetworkError("update"))

	a := []byte("value-a")
	bv := []byte("value-b")
	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI, repoWeb},
		[]update.SecretPair{{Key: "A", Value: a}, {Key: "B", Value: bv}})

	assert.Equal(t, make([]byte, len("value-a")), a, "caller buffer is wiped")
	assert.Equal(t, make([]byte, len("value-b")), bv, "caller buffer is wiped")
	assert.Equal(t, 2, b.Retained())

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, b.Retained(), "only B is still needed for retry")
	assert.Equal(t, 1, b.Unresolved())

	retried, err := b.Retry(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, update.OutcomeSuccess, retried[0].Outcome)
	assert.Equal(t, 0, b.Retained())
	assert.Equal(t, 0, b.Unresolved())

	puts := fake.Puts()
	assert.Equal(t, "value-b", openPut(t, fake, puts[len(puts)-1]))
}

func TestCloseReleasesValues(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	fake.FailPut("acme/api", "A", fakes.NetworkError("update"))

	b, err := update.NewBatch(update.Options{Client: fake}, []update.Repository{repoAPI}, pairs("A", "1"))
	require.NoError(t, err)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Retained())

	b.Close()
	b.Close()
	assert.Equal(t, 0, b.Retained())

	_, err = b.Retry(context.Background(), results)
	assert.ErrorIs(t, err, update.ErrBatchClosed)
}

func TestDuplicatesAreCollapsed(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	aliased := update.Repository{Owner: "acme", Name: "api", Alias: "second"}
	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI, aliased},
		pairs("A", "first", "B", "b", "A", "last"))

	assert.Equal(t, []update.Repository{repoAPI}, b.Repositories())
	assert.Equal(t, []string{"A", "B"}, b.Keys())
	assert.Equal(t, 2, b.Size())

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	puts := fake.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, "last", openPut(t, fake, puts[0]))
}

func TestRunTwiceFails(t *testing.T) {
	t.Parallel()

	b := newBatch(t, update.Options{Client: newFake(repoAPI)}, []update.Repository{repoAPI}, pairs("A", "1"))
	_, err := b.Run(context.Background())
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	assert.Error(t, err)
}

func TestNewBatchValidation(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)

	_, err := update.NewBatch(update.Options{}, []update.Repository{repoAPI}, pairs("A", "1"))
	assert.Error(t, err)
	_, err = update.NewBatch(update.Options{Client: fake}, nil, pairs("A", "1"))
	assert.Error(t, err)
	_, err = update.NewBatch(update.Options{Client: fake}, []update.Repository{repoAPI}, nil)
	assert.Error(t, err)
}

func TestRateLimitBudgetIsNeverExceeded(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Options{MaxWait: time.Millisecond})
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "4")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	limiter.Observe(h)

	fake := newFake(repoAPI)
	fake.Limiter = limiter

	b := newBatch(t, update.Options{Client: fake}, []update.Repository{repoAPI}, pairs("A", "1", "B", "2", "C", "3"))
	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.LessOrEqual(t, len(fake.Calls()), 4)
	assert.Equal(t, update.OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, update.OutcomeFailed, results[1].Outcome)
	assert.Equal(t, update.KindRateLimited, results[1].Err.Kind)
	assert.Equal(t, update.KindRateLimited, results[2].Err.Kind)
}

func TestDeterministicRandIsUsedForSealing(t *testing.T) {
	t.Parallel()

	fake := newFake(repoAPI)
	b := newBatch(t, update.Options{Client: fake, Rand: zeroReader{}}, []update.Repository{repoAPI}, pairs("A", "1", "B", "1"))

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	puts := fake.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, puts[0].Secret.EncryptedValue, puts[1].Secret.EncryptedValue)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
