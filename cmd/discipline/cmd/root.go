package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/discipline/coach"
	"github.com/rustyeddy/discipline/config"
	"github.com/rustyeddy/discipline/history"
	"github.com/rustyeddy/discipline/internal/logging"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfgFile  string
	logLevel string

	cfg   *config.Config
	log   zerolog.Logger
	coach coach.Coach
}

func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "discipline",
		Short: "Check a trade log against a trading plan",
		Long: `Discipline audits executed trades against a written trading plan.

It reports:
  - Trades taken in a market regime the plan does not allow
  - Missing stop losses
  - Positions larger than the regime's size limit
  - Early exits (below 0.5R) and exits at the stop

Every run is remembered, so reports also show whether compliance is
improving or worsening over recent runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML or JSON; defaults apply when omitted)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	root.AddCommand(
		newEvaluateCmd(a),
		newHistoryCmd(a),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return newRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	// .env is optional; a present but broken one is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Default()
	if a.cfgFile != "" {
		var err error
		cfg, err = config.LoadFromFile(a.cfgFile)
		if err != nil {
			return err
		}
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	l, err := logging.New(cmd.ErrOrStderr(), level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.log = l
	return nil
}

// openStore returns the configured history store and a func releasing it.
func (a *app) openStore() (history.Store, func() error, error) {
	switch a.cfg.History.Backend {
	case "sqlite":
		s, err := history.NewSQLite(a.cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return history.NewFileStore(a.cfg.History.Path), func() error { return nil }, nil
	}
}

func (a *app) key(override string) string {
	if override != "" {
		return override
	}
	return a.cfg.History.Key
}

func closeStore(closeFn func() error, log zerolog.Logger) {
	if err := closeFn(); err != nil {
		log.Warn().Err(err).Msg("close history store")
	}
}
