package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/discipline/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `Show runs recorded by evaluate.

Subcommands:
  list  - List recorded runs with their scores
  trend - Print the compliance trend over the recent runs
  keys  - List history keys (sqlite backend only)`,
	}
	cmd.PersistentFlags().StringVar(&key, "key", "", "history key; overrides config")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.loadHistory(key)
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), st)
		},
	}

	trend := &cobra.Command{
		Use:   "trend",
		Short: "Print the compliance trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.loadHistory(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d runs)\n", st.Trend(), len(st.History))
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List history keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore(closeFn, a.log)

			s, ok := store.(*history.SQLiteStore)
			if !ok {
				return fmt.Errorf("history keys requires the sqlite backend")
			}
			ks, err := s.Keys()
			if err != nil {
				return err
			}
			for _, k := range ks {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.AddCommand(list, trend, keys)
	return cmd
}

// loadHistory reads history for key without repairing the store. Recovered
// runs are shown with a warning; a store with nothing recoverable is an error.
func (a *app) loadHistory(key string) (history.State, error) {
	store, closeFn, err := a.openStore()
	if err != nil {
		return history.State{}, err
	}
	defer closeStore(closeFn, a.log)

	k := a.key(key)
	var st history.State
	if in, ok := store.(history.Inspector); ok {
		st, err = in.Inspect(k)
	} else {
		st, err = store.Load(k)
	}
	if err != nil {
		if len(st.History) == 0 {
			return history.State{}, err
		}
		a.log.Warn().Err(err).Str("key", k).Msg("showing recoverable runs only")
	}
	return st, nil
}

func writeRuns(w io.Writer, st history.State) error {
	if len(st.History) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	fmt.Fprintf(w, "%-4s %-26s %-17s %-24s %6s %6s %10s\n", "#", "RUN_ID", "CREATED", "REGIME", "TRADES", "SCORE", "VIOLATIONS")
	for i, r := range st.History {
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		regime := r.Regime
		if regime == "" {
			regime = "-"
		}
		if _, err := fmt.Fprintf(w, "%-4d %-26s %-17s %-24s %6d %6.2f %10d\n",
			i+1, runID, created, regime, r.TradeCount, r.ComplianceScore, len(r.Violations)); err != nil {
			return err
		}
	}
	return nil
}
