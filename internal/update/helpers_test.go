package update_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/systmms/ghsecrets/internal/update"
	"github.com/systmms/ghsecrets/tests/fakes"
)

var (
	repoAPI = update.Repository{Owner: "acme", Name: "api", Alias: "API"}
	repoWeb = update.Repository{Owner: "acme", Name: "web"}
	repoOps = update.Repository{Owner: "acme-ops", Name: "infra"}
)

func newFake(repos ...update.Repository) *fakes.FakeGitHubClient {
	fake := fakes.NewFakeGitHubClient()
	for _, r := range repos {
		fake.AddRepository(r.Path())
	}
	return fake
}

func pairs(kv ...string) []update.SecretPair {
	var out []update.SecretPair
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, update.SecretPair{Key: kv[i], Value: []byte(kv[i+1])})
	}
	return out
}

func newBatch(t *testing.T, opts update.Options, repos []update.Repository, secrets []update.SecretPair) *update.Batch {
	t.Helper()
	b, err := update.NewBatch(opts, repos, secrets)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

// openPut decrypts a submitted value with the fake's private key
func openPut(t *testing.T, fake *fakes.FakeGitHubClient, put fakes.PutCall) string {
	t.Helper()

	rawPub, err := base64.StdEncoding.DecodeString(fake.Keys[put.Repo].Key)
	require.NoError(t, err)
	var pub [32]byte
	copy(pub[:], rawPub)

	sealed, err := base64.StdEncoding.DecodeString(put.Secret.EncryptedValue)
	require.NoError(t, err)

	plain, ok := box.OpenAnonymous(nil, sealed, &pub, fake.PrivateKeys[put.Repo])
	require.True(t, ok, "ciphertext must open with the repository key")
	return string(plain)
}

type transition struct {
	Repo  string
	Key   string
	State update.State
}

// recorder is an Observer that keeps every callback
type recorder struct {
	mu          sync.Mutex
	transitions []transition
	completed   []update.OperationResult
}

func (r *recorder) StateChanged(repo update.Repository, key string, state update.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition{Repo: repo.Path(), Key: key, State: state})
}

func (r *recorder) Completed(result update.OperationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
}

func (r *recorder) statesFor(repo, key string) []update.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []update.State
	for _, tr := range r.transitions {
		if tr.Repo == repo && tr.Key == key {
			states = append(states, tr.State)
		}
	}
	return states
}

// scriptedConfirm answers from a fixed list and records every request
type scriptedConfirm struct {
	answers  []update.Decision
	requests []update.ConfirmationRequest
}

func (s *scriptedConfirm) Confirm(_ context.Context, req update.ConfirmationRequest) (update.Decision, error) {
	s.requests = append(s.requests, req)
	if len(s.answers) == 0 {
		return update.Decline, nil
	}
	d := s.answers[0]
	s.answers = s.answers[1:]
	return d, nil
}
