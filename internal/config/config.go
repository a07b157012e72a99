package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	ghserrors "github.com/systmms/ghsecrets/internal/errors"
	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/validation"
)

const (
	// FileName is the project-local configuration file
	FileName = "ghsecrets.yaml"
	// AppDir is the directory name under XDG config and data homes
	AppDir   = "ghsecrets"

	DefaultTimeout  = 30 * time.Second
	DefaultMaxWait  = 15 * time.Minute
	DefaultAPIURL   = "https://api.github.com"
	DefaultPrefetch = 4
	EnvConfigPath   = "GHSECRETS_CONFIG"
	EnvLegacyConfig = "CONFIG_PATH"
)

//go:embed schema.json
var schemaJSON []byte

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	MetricsFile    string
	Definition     *Definition
}

// Definition represents the ghsecrets.yaml structure
type Definition struct {
	Version      int                `yaml:"version,omitempty"`
	APIURL       string             `yaml:"api_url,omitempty"`
	TimeoutMs    int                `yaml:"timeout_ms,omitempty"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit,omitempty"`
	Repositories []RepositoryConfig `yaml:"repositories,omitempty"`
	Repository   *RepositoryConfig  `yaml:"repository,omitempty"` // Single-repository shorthand
}

// RateLimitConfig tunes the client-side rate limiter
type RateLimitConfig struct {
	MaxWait             string  `yaml:"max_wait,omitempty"`
	RequestsPerSecond   float64 `yaml:"requests_per_second,omitempty"`
	PrefetchParallelism int     `yaml:"prefetch_parallelism,omitempty"`
}

// RepositoryConfig is one target repository
type RepositoryConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
	Alias string `yaml:"alias,omitempty"`
}

// Path returns "owner/name"
func (r RepositoryConfig) Path() string {
	return r.Owner + "/" + r.Name
}

// DisplayName returns "alias (owner/name)" when an alias is set
func (r RepositoryConfig) DisplayName() string {
	if r.Alias != "" {
		return fmt.Sprintf("%s (%s)", r.Alias, r.Path())
	}
	return r.Path()
}

// Load reads and parses the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ghserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: fmt.Sprintf("Create %s with a 'repositories' list, or pass --config", FileName),
			}
		}
		return ghserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	if c.Logger != nil {
		c.Logger.Debug("Loaded %d repositories from %s", len(def.Repositories), c.Path)
	}
	c.Definition = def
	return nil
}

// Save writes def to path as YAML. The encoded document goes through the
// same schema and field validation as Load before anything is written.
// Comments in an existing file are not preserved.
func Save(path string, def *Definition) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if _, err := Parse(buf.Bytes()); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return ghserrors.UserError{
			Message:    "Failed to write configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}
	return nil
}

// Parse decodes and validates configuration bytes
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ghserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if raw == nil {
		return nil, noRepositories()
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, ghserrors.ConfigError{
			Message:    fmt.Sprintf("failed to decode configuration: %v", err),
			Suggestion: "Compare your file with the documented format",
		}
	}

	if err := def.normalize(); err != nil {
		return nil, err
	}
	return &def, nil
}

// normalize folds the single-repository shorthand into the list and
// validates every entry.
func (d *Definition) normalize() error {
	if len(d.Repositories) == 0 && d.Repository != nil {
		d.Repositories = append(d.Repositories, *d.Repository)
	}
	d.Repository = nil

	if len(d.Repositories) == 0 {
		return noRepositories()
	}

	for i, repo := range d.Repositories {
		if err := validation.Owner(repo.Owner); err != nil {
			return ghserrors.ConfigError{
				Field:      fmt.Sprintf("repositories[%d].owner", i),
				Value:      repo.Owner,
				Message:    err.Error(),
				Suggestion: "Set the GitHub user or organization that owns the repository",
			}
		}
		if err := validation.RepoName(repo.Name); err != nil {
			return ghserrors.ConfigError{
				Field:      fmt.Sprintf("repositories[%d].name", i),
				Value:      repo.Name,
				Message:    err.Error(),
				Suggestion: "Use the repository name as it appears in its URL",
			}
		}
	}

	if d.RateLimit.MaxWait != "" {
		if _, err := time.ParseDuration(d.RateLimit.MaxWait); err != nil {
			return ghserrors.ConfigError{
				Field:      "rate_limit.max_wait",
				Value:      d.RateLimit.MaxWait,
				Message:    "invalid duration",
				Suggestion: "Use a Go duration such as 90s or 15m",
			}
		}
	}
	return nil
}

func noRepositories() error {
	return ghserrors.ConfigError{
		Field:      "repositories",
		Message:    "no repositories found in configuration file",
		Suggestion: "Add a 'repositories' list with owner and name for each repository",
	}
}

func validateSchema(raw interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return ghserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Fix the listed fields; unknown keys are rejected",
		}
	}
	return nil
}

// Timeout returns the per-request timeout
func (d *Definition) Timeout() time.Duration {
	if d == nil || d.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// MaxWait returns the longest rate-limit suspension allowed
func (d *Definition) MaxWait() time.Duration {
	if d == nil || d.RateLimit.MaxWait == "" {
		return DefaultMaxWait
	}
	wait, err := time.ParseDuration(d.RateLimit.MaxWait)
	if err != nil || wait <= 0 {
		return DefaultMaxWait
	}
	return wait
}

// PrefetchParallelism returns the concurrent key fetch limit
func (d *Definition) PrefetchParallelism() int {
	if d == nil || d.RateLimit.PrefetchParallelism <= 0 {
		return DefaultPrefetch
	}
	return d.RateLimit.PrefetchParallelism
}

// BaseURL returns the GitHub API base URL
func (d *Definition) BaseURL() string {
	if d == nil || d.APIURL == "" {
		return DefaultAPIURL
	}
	return strings.TrimRight(d.APIURL, "/")
}

// FindRepository looks a repository up by "owner/name" or alias
func (d *Definition) FindRepository(ref string) (RepositoryConfig, bool) {
	for _, repo := range d.Repositories {
		if repo.Path() == ref || (repo.Alias != "" && repo.Alias == ref) {
			return repo, true
		}
	}
	return RepositoryConfig{}, false
}

// FindPath resolves the configuration file location. The first of these
// wins: explicit, $GHSECRETS_CONFIG, $CONFIG_PATH, ./ghsecrets.yaml,
// $XDG_CONFIG_HOME/ghsecrets/config.yaml, ~/.config/ghsecrets/config.yaml.
// When nothing exists the XDG default is returned so the error names it.
func FindPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, env := range []string{EnvConfigPath, EnvLegacyConfig} {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}

	candidates := []string{FileName}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, AppDir, "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", AppDir, "config.yaml"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}

	if len(candidates) > 1 {
		return candidates[1]
	}
	return FileName
}
