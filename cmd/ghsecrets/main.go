package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/systmms/ghsecrets/cmd/ghsecrets/commands"
	"github.com/systmms/ghsecrets/internal/config"
	ghserrors "github.com/systmms/ghsecrets/internal/errors"
	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/secure"
	"github.com/systmms/ghsecrets/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", ghserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	defer secure.Purge()

	// Global flags
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
		metricsFile    string
	)

	cfg := &config.Config{}
	app := commands.NewApp(cfg, version)
	updateCmd := commands.NewUpdateCommand(app)

	rootCmd := &cobra.Command{
		Use:   "ghsecrets",
		Short: "Update GitHub Actions secrets across repositories",
		Long: `ghsecrets writes GitHub Actions repository secrets to one or more
repositories at once. Values are sealed locally with each repository's
public key, existing secrets are only overwritten after confirmation, and
failed operations can be retried without re-entering anything.

Running ghsecrets without a command starts an interactive update.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
			cfg.Path = config.FindPath(configFile)
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
			cfg.MetricsFile = metricsFile

			if metricsFile != "" {
				update.InitMetrics()
				app.Metrics = update.NewMetrics()
			}
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateCmd.RunE(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ./ghsecrets.yaml or $XDG_CONFIG_HOME/ghsecrets/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; fail or skip instead")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		updateCmd,
		commands.NewReposCommand(app),
		commands.NewConfigCommand(app),
		commands.NewLoginCommand(app),
		commands.NewLogoutCommand(app),
		commands.NewDoctorCommand(app),
		commands.NewHistoryCommand(app),
		commands.NewCompletionCommand(app),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", werr)
		}
	}
	return err
}
