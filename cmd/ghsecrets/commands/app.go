package commands

import (
	"io"
	"os"

	"github.com/systmms/ghsecrets/internal/config"
	"github.com/systmms/ghsecrets/internal/credentials"
	ghserrors "github.com/systmms/ghsecrets/internal/errors"
	"github.com/systmms/ghsecrets/internal/github"
	"github.com/systmms/ghsecrets/internal/github/contracts"
	"github.com/systmms/ghsecrets/internal/history"
	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/prompt"
	"github.com/systmms/ghsecrets/internal/ratelimit"
	"github.com/systmms/ghsecrets/internal/update"
)

// ClientFactory builds the GitHub client for one batch
type ClientFactory func(def *config.Definition, token string, limiter *ratelimit.Limiter, logger *logging.Logger) (contracts.SecretsClient, error)

// App carries what the commands share. Fields are replaceable in tests.
type App struct {
	Config  *config.Config
	Version string

	In  io.Reader
	Out io.Writer
	Err io.Writer

	Getenv     func(string) string
	IsTerminal func() bool

	Tokens    *credentials.Store
	History   *history.Store
	Metrics   *update.Metrics
	NewClient ClientFactory

	prompts *prompt.Prompter
}

// NewApp wires the production dependencies
func NewApp(cfg *config.Config, version string) *App {
	return &App{
		Config:     cfg,
		Version:    version,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		Getenv:     os.Getenv,
		IsTerminal: prompt.IsInteractive,
		Tokens:     credentials.NewStore(),
		History:    history.NewStore(history.DefaultDir()),
		NewClient:  newGitHubClient(version),
	}
}

func newGitHubClient(version string) ClientFactory {
	return func(def *config.Definition, token string, limiter *ratelimit.Limiter, logger *logging.Logger) (contracts.SecretsClient, error) {
		return github.NewClient(github.Config{
			BaseURL:   def.BaseURL(),
			Token:     token,
			Timeout:   def.Timeout(),
			UserAgent: "ghsecrets/" + version,
			Limiter:   limiter,
			Logger:    logger,
		})
	}
}

func (a *App) logger() *logging.Logger {
	if a.Config.Logger == nil {
		a.Config.Logger = logging.New(false, false)
	}
	return a.Config.Logger
}

func (a *App) interactive() bool {
	return !a.Config.NonInteractive && a.IsTerminal != nil && a.IsTerminal()
}

// prompter is shared so buffered input is not lost between questions
func (a *App) prompter() *prompt.Prompter {
	if a.prompts == nil {
		a.prompts = prompt.New(a.In, a.Err)
	}
	return a.prompts
}

func (a *App) loadConfig() error {
	if a.Config.Definition != nil {
		return nil
	}
	return a.Config.Load()
}

func (a *App) newLimiter(def *config.Definition) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Options{
		MaxWait:           def.MaxWait(),
		RequestsPerSecond: def.RateLimit.RequestsPerSecond,
		Logger:            a.logger(),
		OnWait:            a.Metrics.RecordRateLimitWait,
	})
}

func (a *App) resolveToken(def *config.Definition, envVar string) (string, error) {
	host := github.Host(def.BaseURL())
	r := &credentials.Resolver{EnvVar: envVar, Store: a.Tokens, Getenv: a.Getenv}

	token, source, err := r.Resolve(host)
	if err != nil {
		return "", ghserrors.UserError{
			Message:    "No usable GitHub token",
			Details:    err.Error(),
			Suggestion: "Export GITHUB_TOKEN, pass --token-env, or run 'ghsecrets login'",
			Err:        err,
		}
	}
	a.logger().RedactValues(token)
	a.logger().Debug("Using token from %s for %s", source, host)
	return token, nil
}

// connect resolves the token and builds a rate-limited client
func (a *App) connect(def *config.Definition, envVar string) (contracts.SecretsClient, error) {
	token, err := a.resolveToken(def, envVar)
	if err != nil {
		return nil, err
	}
	client, err := a.NewClient(def, token, a.newLimiter(def), a.logger())
	if err != nil {
		return nil, ghserrors.UserError{
			Message: "Failed to create GitHub client",
			Details: err.Error(),
			Err:     err,
		}
	}
	return client, nil
}

func toRepositories(cfgs []config.RepositoryConfig) []update.Repository {
	repos := make([]update.Repository, 0, len(cfgs))
	for _, rc := range cfgs {
		repos = append(repos, update.Repository{Owner: rc.Owner, Name: rc.Name, Alias: rc.Alias})
	}
	return repos
}
