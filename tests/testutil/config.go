// Package testutil provides test utilities and helpers for ghsecrets tests.
//
// This package contains shared test infrastructure: a configuration builder,
// logger capture, redaction assertions and an in-process GitHub API server.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/ghsecrets/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithRepository("acme", "api", "API").
//	    WithAPIURL(server.URL).
//	    Build()
type TestConfigBuilder struct {
	def     *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a new TestConfigBuilder with no repositories.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		def:     &config.Definition{Version: 0},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithRepository adds a target repository.
func (b *TestConfigBuilder) WithRepository(owner, name, alias string) *TestConfigBuilder {
	b.def.Repositories = append(b.def.Repositories, config.RepositoryConfig{Owner: owner, Name: name, Alias: alias})
	return b
}

// WithAPIURL points the configuration at another API base URL.
func (b *TestConfigBuilder) WithAPIURL(url string) *TestConfigBuilder {
	b.def.APIURL = url
	return b
}

// WithMaxWait sets rate_limit.max_wait.
func (b *TestConfigBuilder) WithMaxWait(d string) *TestConfigBuilder {
	b.def.RateLimit.MaxWait = d
	return b
}

// Write marshals the configuration to ghsecrets.yaml in a temp directory
// and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}

	path := filepath.Join(b.tempDir, config.FileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// Build writes and loads the configuration.
func (b *TestConfigBuilder) Build() *config.Config {
	b.t.Helper()

	cfg := &config.Config{Path: b.Write(), NonInteractive: true}
	if err := cfg.Load(); err != nil {
		b.t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
