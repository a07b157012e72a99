package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/internal/config"
	ghserrors "github.com/systmms/ghsecrets/internal/errors"
	"github.com/systmms/ghsecrets/internal/history"
	"github.com/systmms/ghsecrets/internal/secure"
	"github.com/systmms/ghsecrets/internal/update"
	"github.com/systmms/ghsecrets/internal/validation"
)

type updateOptions struct {
	repos       []string
	all         bool
	fromEnv     []string
	yes         bool
	noOverwrite bool
	retries     int
	tokenEnv    string
	noPrefetch  bool
}

// NewUpdateCommand creates the update command. It is also the root
// command's default action.
func NewUpdateCommand(app *App) *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Create or update Actions secrets in one or more repositories",
		Long: `Write secrets to the selected repositories. Each value is sealed with the
repository's public key before it leaves this machine.

Existing secrets are only overwritten after confirmation, or with --yes.

Examples:
  ghsecrets update                                 # Interactive selection and entry
  ghsecrets update --repo acme/api --from-env DB_PASSWORD
  ghsecrets update --all --from-env API_KEY=CI_API_KEY --yes
  ghsecrets update --all --from-env API_KEY --non-interactive --retries 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.repos, "repo", "r", nil, "Target repository as owner/name or alias (repeatable)")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Target every configured repository")
	cmd.Flags().StringArrayVarP(&opts.fromEnv, "from-env", "e", nil, "Read a secret from the environment: NAME or NAME=VAR (repeatable)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite existing secrets without asking")
	cmd.Flags().BoolVar(&opts.noOverwrite, "no-overwrite", false, "Never overwrite existing secrets")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retry failed operations up to N times without asking")
	cmd.Flags().StringVar(&opts.tokenEnv, "token-env", "", "Environment variable holding the GitHub token")
	cmd.Flags().BoolVar(&opts.noPrefetch, "no-prefetch", false, "Fetch public keys one at a time instead of up front")

	return cmd
}

func runUpdate(ctx context.Context, app *App, opts *updateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.yes && opts.noOverwrite {
		return ghserrors.UserError{
			Message:    "--yes and --no-overwrite cannot be combined",
			Suggestion: "Pick one overwrite policy",
		}
	}
	if opts.retries < 0 {
		return ghserrors.UserError{Message: "--retries must not be negative"}
	}

	if err := app.loadConfig(); err != nil {
		return err
	}
	def := app.Config.Definition
	logger := app.logger()

	repos, err := selectRepositories(ctx, app, def, opts)
	if err != nil {
		return err
	}

	secrets, err := collectSecrets(ctx, app, opts)
	if err != nil {
		return err
	}
	wipe := func() {
		for _, s := range secrets {
			secure.Wipe(s.Value)
		}
	}

	client, err := app.connect(def, opts.tokenEnv)
	if err != nil {
		wipe()
		return err
	}

	batch, err := update.NewBatch(update.Options{
		Client:              client,
		Confirm:             confirmationSource(app, opts),
		Observer:            &progressPrinter{out: app.Out, logger: logger},
		Metrics:             app.Metrics,
		Logger:              logger,
		Prefetch:            !opts.noPrefetch,
		PrefetchParallelism: def.PrefetchParallelism(),
	}, repos, secrets)
	if err != nil {
		wipe()
		return err
	}
	defer batch.Close()

	logger.Info("Updating %d secret(s) in %d repositories", len(batch.Keys()), len(batch.Repositories()))

	batchID := history.NewBatchID()
	started := time.Now()
	results, runErr := batch.Run(ctx)
	app.saveReport(batchID, 1, started, results, runErr)
	summary := printSummary(app.Out, results)
	if runErr != nil {
		return abortError(runErr)
	}

	for round := 1; !summary.OK(); round++ {
		failures := update.Failures(results)
		if !shouldRetry(ctx, app, opts, round, failures) {
			break
		}

		started = time.Now()
		retried, err := batch.Retry(ctx, results)
		app.saveReport(batchID, round+1, started, retried, err)
		results = update.Merge(results, retried)
		summary = printSummary(app.Out, results)
		if err != nil {
			return abortError(err)
		}
	}

	if !summary.OK() {
		return ghserrors.UserError{
			Message:    fmt.Sprintf("%d of %d operations failed", summary.Failed, summary.Total),
			Suggestion: fmt.Sprintf("Fix the errors above and re-run, or inspect 'ghsecrets history %s'", shortID(batchID)),
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func selectRepositories(ctx context.Context, app *App, def *config.Definition, opts *updateOptions) ([]update.Repository, error) {
	var repos []update.Repository
	if opts.all {
		repos = append(repos, toRepositories(def.Repositories)...)
	}
	for _, ref := range opts.repos {
		if rc, ok := def.FindRepository(ref); ok {
			repos = append(repos, toRepositories([]config.RepositoryConfig{rc})...)
			continue
		}
		owner, name, err := validation.ParseRepository(ref)
		if err != nil {
			return nil, ghserrors.UserError{
				Message:    fmt.Sprintf("Unknown repository %q", ref),
				Details:    err.Error(),
				Suggestion: "Use owner/name or an alias from 'ghsecrets repos'",
				Err:        err,
			}
		}
		repos = append(repos, update.Repository{Owner: owner, Name: name})
	}
	if len(repos) > 0 {
		return repos, nil
	}

	if !app.interactive() {
		return nil, ghserrors.UserError{
			Message:    "No repositories selected",
			Suggestion: "Pass --repo owner/name or --all when running non-interactively",
		}
	}
	return app.prompter().SelectRepositories(ctx, toRepositories(def.Repositories))
}

func collectSecrets(ctx context.Context, app *App, opts *updateOptions) ([]update.SecretPair, error) {
	if len(opts.fromEnv) == 0 {
		if !app.interactive() {
			return nil, ghserrors.UserError{
				Message:    "No secrets provided",
				Suggestion: "Pass --from-env NAME when running non-interactively",
			}
		}
		return app.prompter().ReadSecrets(ctx)
	}

	pairs := make([]update.SecretPair, 0, len(opts.fromEnv))
	for _, spec := range opts.fromEnv {
		name, envVar, found := strings.Cut(spec, "=")
		if !found {
			envVar = name
		}
		if err := validation.SecretName(name); err != nil {
			return nil, ghserrors.UserError{Message: "Invalid secret name", Details: err.Error(), Err: err}
		}
		value := app.Getenv(envVar)
		if value == "" {
			return nil, ghserrors.UserError{
				Message:    fmt.Sprintf("Environment variable %s is empty or unset", envVar),
				Suggestion: "Export it before running, or use NAME=VAR to read another variable",
			}
		}
		pairs = append(pairs, update.SecretPair{Key: name, Value: []byte(value)})
	}
	return pairs, nil
}

func confirmationSource(app *App, opts *updateOptions) update.ConfirmationSource {
	switch {
	case opts.yes:
		return update.AlwaysApprove
	case opts.noOverwrite:
		return update.AlwaysDecline
	case app.interactive():
		return app.prompter().Confirmer()
	}
	app.logger().Warn("Existing secrets will be skipped; pass --yes to overwrite them")
	return update.AlwaysDecline
}

// shouldRetry retries automatically for the first --retries rounds while a
// transient failure remains, then asks when interactive.
func shouldRetry(ctx context.Context, app *App, opts *updateOptions, round int, failures []update.OperationResult) bool {
	if ctx.Err() != nil {
		return false
	}
	if round <= opts.retries && anyTransient(failures) {
		return true
	}
	if !app.interactive() {
		return false
	}
	ok, err := app.prompter().ConfirmRetry(ctx, len(failures))
	return err == nil && ok
}

func anyTransient(failures []update.OperationResult) bool {
	for _, f := range failures {
		if f.Err == nil {
			continue
		}
		switch f.Err.Kind {
		case update.KindNetwork, update.KindRateLimited:
			return true
		}
		if ghserrors.IsRetryable(f.Err) {
			return true
		}
	}
	return false
}

func (a *App) saveReport(batchID string, round int, started time.Time, results []update.OperationResult, runErr error) {
	if a.History == nil || len(results) == 0 && runErr == nil {
		return
	}
	var authErr *update.AuthAbortError
	report := history.NewReport(batchID, round, started, time.Now(), results, errors.As(runErr, &authErr))
	if err := a.History.Save(report); err != nil {
		a.logger().Warn("Could not save batch report: %v", err)
	}
}

func abortError(err error) error {
	var authErr *update.AuthAbortError
	if errors.As(err, &authErr) {
		return ghserrors.UserError{
			Message:    "Authentication failed, remaining operations were not attempted",
			Details:    authErr.Error(),
			Suggestion: "The token is invalid or expired. Run 'ghsecrets login' or export a fresh GITHUB_TOKEN",
			Err:        err,
		}
	}
	return err
}
