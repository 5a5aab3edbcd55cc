package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/discipline/agent"
	"github.com/rustyeddy/discipline/coach"
	"github.com/rustyeddy/discipline/plan"
	"github.com/rustyeddy/discipline/report"
	"github.com/rustyeddy/discipline/trade"
)

type evaluateOptions struct {
	trades     string
	plan       string
	regime     string
	historyKey string
	export     string
	json       bool
	coach      bool
}

func newEvaluateCmd(a *app) *cobra.Command {
	o := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a trade log against a plan",
		Long: `Check every trade in a CSV log against the plan's rules for the
current market regime, record the run in history and print a report.

Example:
  discipline evaluate --trades trades.csv --plan plan.json --regime "Risk-Off / High Vol"
  discipline evaluate --trades trades.csv --plan plan.yaml --regime Risk-On --export violations.csv --coach`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvaluate(cmd.Context(), cmd.OutOrStdout(), o, cmd.Flags().Changed("coach"))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.trades, "trades", "t", "", "trade log CSV (required)")
	f.StringVarP(&o.plan, "plan", "p", "", "trading plan, YAML or JSON (required)")
	f.StringVarP(&o.regime, "regime", "r", "", "current market regime label (required)")
	f.StringVar(&o.historyKey, "history-key", "", "history key; overrides config")
	f.StringVar(&o.export, "export", "", "also write violations to this CSV file")
	f.BoolVar(&o.json, "json", false, "print the report as JSON")
	f.BoolVar(&o.coach, "coach", false, "ask a language model for coaching (needs an API key)")
	_ = cmd.MarkFlagRequired("trades")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("regime")

	return cmd
}

// jsonReport is the --json output: the report plus run context.
type jsonReport struct {
	RunID string `json:"run_id"`
	report.DisciplineReport
	Coaching *coach.Advice `json:"coaching,omitempty"`
}

func (a *app) runEvaluate(ctx context.Context, out io.Writer, o *evaluateOptions, coachSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	trades, err := trade.LoadCSV(o.trades)
	if err != nil {
		return err
	}
	p, err := plan.Load(o.plan)
	if err != nil {
		return err
	}

	store, closeFn, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore(closeFn, a.log)

	ag := agent.New(store, a.key(o.historyKey), agent.WithLogger(a.log))
	res, err := ag.Evaluate(trades, p, o.regime)
	if err != nil {
		return err
	}

	if o.export != "" {
		if err := report.SaveViolationsCSV(o.export, res.Report.Violations); err != nil {
			return err
		}
		a.log.Info().Str("path", o.export).Int("violations", len(res.Report.Violations)).Msg("violations exported")
	}

	var advice *coach.Advice
	wantCoach := a.cfg.Coach.Enabled
	if coachSet {
		wantCoach = o.coach
	}
	if wantCoach {
		adv, err := a.advise(ctx, res.Report)
		if err != nil {
			return err
		}
		advice = &adv
	}

	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonReport{RunID: res.Run.RunID, DisciplineReport: res.Report, Coaching: advice})
	}

	meta := report.Meta{
		RunID:      res.Run.RunID,
		Regime:     o.regime,
		Trades:     len(trades),
		TradesFile: o.trades,
		PlanFile:   o.plan,
		Created:    res.Run.CreatedAt,
	}
	if err := report.WriteOrg(out, res.Report, meta); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if advice != nil {
		if advice.Available {
			fmt.Fprintf(out, "\n** Coaching\n%s\n", advice.Text)
		} else {
			fmt.Fprintf(out, "\nCoaching unavailable: %s\n", advice.Reason)
		}
	}
	return nil
}

// coachClient returns the app's coach, building it on first use. One client
// is kept so its circuit breaker sees every call of the process.
func (a *app) coachClient() (coach.Coach, error) {
	if a.coach != nil {
		return a.coach, nil
	}

	cc := a.cfg.Coach
	timeout, err := cc.ParseTimeout()
	if err != nil {
		return nil, fmt.Errorf("coach.timeout: %w", err)
	}
	a.coach = coach.NewOpenAI(coach.Config{
		APIKey:      os.Getenv(cc.APIKeyEnv),
		BaseURL:     cc.BaseURL,
		Model:       cc.Model,
		MaxTokens:   cc.MaxTokens,
		Temperature: cc.Temperature,
		Timeout:     timeout,
	})
	return a.coach, nil
}

func (a *app) advise(ctx context.Context, r report.DisciplineReport) (coach.Advice, error) {
	c, err := a.coachClient()
	if err != nil {
		return coach.Advice{}, err
	}
	adv := coach.Advise(ctx, c, coach.FromReport(r))
	if !adv.Available {
		a.log.Warn().Str("reason", adv.Reason).Msg("coaching unavailable")
	}
	return adv, nil
}
