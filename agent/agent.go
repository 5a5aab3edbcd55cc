package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/discipline/history"
	"github.com/rustyeddy/discipline/pkg/id"
	"github.com/rustyeddy/discipline/plan"
	"github.com/rustyeddy/discipline/report"
	"github.com/rustyeddy/discipline/rules"
	"github.com/rustyeddy/discipline/trade"
)

// ErrHistorySave is wrapped around store write failures. A run whose history
// could not be saved returns no report, since later trends would silently
// miss it.
var ErrHistorySave = errors.New("save run history")

// Agent checks trade logs against a plan and records each run in one store
// key. It assumes it is the only writer to that key.
type Agent struct {
	store history.Store
	key   string
	log   zerolog.Logger
	now   func() time.Time
	newID func(time.Time) string
}

type Option func(*Agent)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Agent) { a.log = l }
}

// WithClock overrides the time source used to stamp runs.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithIDs overrides run ID generation.
func WithIDs(f func(time.Time) string) Option {
	return func(a *Agent) { a.newID = f }
}

// New binds an agent to store under key.
func New(store history.Store, key string, opts ...Option) *Agent {
	a := &Agent{
		store: store,
		key:   key,
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: id.NewAt,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Key is the store key this agent writes to.
func (a *Agent) Key() string {
	return a.key
}

// Result is a report plus the run record persisted for it.
type Result struct {
	Report report.DisciplineReport
	Run    history.RunRecord
}

// Run evaluates trades and returns the report.
func (a *Agent) Run(trades []trade.Trade, p *plan.Plan, regime string) (report.DisciplineReport, error) {
	res, err := a.Evaluate(trades, p, regime)
	if err != nil {
		return report.DisciplineReport{}, err
	}
	return res.Report, nil
}

// Evaluate runs the checks, appends the run to history, saves it and then
// classifies the trend, so the trend always includes this run.
func (a *Agent) Evaluate(trades []trade.Trade, p *plan.Plan, regime string) (Result, error) {
	if p == nil {
		return Result{}, plan.ErrMissingAllowedRegimes
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	violations := rules.Evaluate(trades, p, regime)
	sum := report.Summarize(violations, len(trades))

	st, err := a.store.Load(a.key)
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("key", a.key).
			Int("recovered_runs", len(st.History)).
			Msg("history unavailable, continuing with recovered runs")
	}

	now := a.now()
	run := history.RunRecord{
		RunID:            a.newID(now),
		CreatedAt:        now.UTC(),
		Regime:           regime,
		TradeCount:       len(trades),
		ComplianceScore:  sum.ComplianceScore,
		Violations:       violations,
		ViolationSummary: sum.ViolationSummary,
	}
	st.Append(run)

	if err := a.store.Save(a.key, st); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrHistorySave, err)
	}
	a.log.Debug().
		Str("key", a.key).
		Str("run_id", run.RunID).
		Int("runs", len(st.History)).
		Msg("run persisted")

	rep := report.DisciplineReport{
		ComplianceScore:    sum.ComplianceScore,
		Violations:         violations,
		RegimeMismatchRate: sum.RegimeMismatchRate,
		ViolationSummary:   sum.ViolationSummary,
		ComplianceTrend:    st.Trend(),
	}
	a.log.Info().
		Str("regime", regime).
		Int("trades", len(trades)).
		Int("violations", len(violations)).
		Float64("score", rep.ComplianceScore).
		Str("trend", string(rep.ComplianceTrend)).
		Msg("discipline report")

	return Result{Report: rep, Run: run}, nil
}
