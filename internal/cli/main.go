package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/logging"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Getenv)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	getenv     func(string) string
	configPath string
	logLevel   string
	verbose    bool

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	a := &app{getenv: getenv, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "reelcut",
		Short:         "Assemble a captioned portrait highlight reel from a long video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Shorthand for --log-level debug")

	root.AddCommand(
		newAssembleCmd(a),
		newSelectCmd(a),
		newSegmentsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.getenv)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch {
	case a.verbose:
		cfg.LogLevel = "debug"
	case a.logLevel != "":
		cfg.LogLevel = a.logLevel
	}

	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat, a.getenv("NO_COLOR") != "")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}
