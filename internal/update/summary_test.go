package update_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/ghsecrets/internal/update"
)

func result(repo update.Repository, key string, outcome update.Outcome) update.OperationResult {
	r := update.OperationResult{Repository: repo, SecretKey: key, Outcome: outcome, Attempt: 1}
	if outcome == update.OutcomeFailed {
		r.Err = &update.OperationError{Kind: update.KindNetwork, Message: "boom"}
	}
	return r
}

func TestFold(t *testing.T) {
	t.Parallel()

	results := []update.OperationResult{
		result(repoWeb, "A", update.OutcomeSuccess),
		result(repoWeb, "B", update.OutcomeFailed),
		result(repoAPI, "A", update.OutcomeSkipped),
		result(repoAPI, "B", update.OutcomeSuccess),
		result(repoWeb, "C", update.OutcomeSuccess),
	}

	s := update.Fold(results)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Successful)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.False(t, s.OK())

	assert.Equal(t, []update.Repository{repoWeb, repoAPI}, s.Repositories)
	assert.Equal(t, update.RepoCounts{Successful: 2, Failed: 1}, s.PerRepository[repoWeb])
	assert.Equal(t, update.RepoCounts{Successful: 1, Skipped: 1}, s.PerRepository[repoAPI])
}

func TestFoldEmpty(t *testing.T) {
	t.Parallel()

	s := update.Fold(nil)
	assert.Zero(t, s.Total)
	assert.True(t, s.OK())
	assert.Empty(t, s.Repositories)
	assert.NotNil(t, s.PerRepository)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	previous := []update.OperationResult{
		result(repoAPI, "A", update.OutcomeSuccess),
		result(repoAPI, "B", update.OutcomeFailed),
		result(repoWeb, "A", update.OutcomeFailed),
	}
	retried := []update.OperationResult{
		result(repoWeb, "A", update.OutcomeSuccess),
		result(repoAPI, "B", update.OutcomeFailed),
	}
	retried[0].Attempt = 2
	retried[1].Attempt = 2

	merged := update.Merge(previous, retried)
	assert.Len(t, merged, 3)
	assert.Equal(t, "A", merged[0].SecretKey)
	assert.Equal(t, 1, merged[0].Attempt)
	assert.Equal(t, update.OutcomeFailed, merged[1].Outcome)
	assert.Equal(t, 2, merged[1].Attempt)
	assert.Equal(t, update.OutcomeSuccess, merged[2].Outcome)

	assert.Len(t, update.Failures(merged), 1)
	assert.Equal(t, previous, update.Merge(previous, nil))
}

func TestStringers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", update.OutcomeSuccess.String())
	assert.Equal(t, "skipped", update.OutcomeSkipped.String())
	assert.Equal(t, "failed", update.OutcomeFailed.String())
	assert.Equal(t, "awaiting-confirmation", update.StateAwaitingConfirmation.String())
	assert.Equal(t, "abort", update.Abort.String())
	assert.Equal(t, "RateLimited", update.KindRateLimited.String())

	assert.Equal(t, "acme/api", repoAPI.Path())
	assert.Equal(t, "API (acme/api)", repoAPI.DisplayName())
	assert.Equal(t, "acme/web", repoWeb.DisplayName())
}
