package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that a secret value does not appear in a
// string and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecrets verifies that none of the values appear in output.
func AssertNoSecrets(t *testing.T, output string, values ...string) {
	t.Helper()

	for _, v := range values {
		assert.NotContains(t, output, v, "Secret value %q leaked into output", v)
	}
}
