package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/discipline/plan"
	"github.com/rustyeddy/discipline/trade"
)

var p = trade.Price

func longTrade(entry, exit, stop float64) trade.Trade {
	return trade.Trade{Symbol: "AAPL", RawSide: "LONG", EntryPrice: p(entry), ExitPrice: p(exit), StopPrice: p(stop), Shares: p(10)}
}

func typesOf(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Type)
	}
	return out
}

func TestCheckRegime(t *testing.T) {
	t.Parallel()

	trades := []trade.Trade{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}}

	vs := CheckRegime(trades, []string{"Risk-On"}, "Risk-Off")
	require.Len(t, vs, 3)
	for i, v := range vs {
		assert.Equal(t, i, v.TradeIndex)
		assert.Equal(t, RegimeMismatch, v.Type)
		assert.Equal(t, "Trade taken during Risk-Off regime", v.Detail)
	}

	assert.Empty(t, CheckRegime(trades, []string{"Risk-Off", "Risk-On"}, "Risk-Off"))
	assert.Len(t, CheckRegime(trades, []string{}, "Risk-On"), 3)
	assert.Empty(t, CheckRegime(nil, []string{"Risk-On"}, "Risk-Off"))
}

func TestCheckStops(t *testing.T) {
	t.Parallel()

	trades := []trade.Trade{
		{Symbol: "A", StopPrice: p(9)},
		{Symbol: "B"},
		{Symbol: "C", StopPrice: p(0)},
		{Symbol: "D"},
	}

	vs := CheckStops(trades)
	require.Len(t, vs, 2)
	assert.Equal(t, 1, vs[0].TradeIndex)
	assert.Equal(t, 3, vs[1].TradeIndex)
	assert.Equal(t, MissingStop, vs[0].Type)
}

func TestCheckSizing(t *testing.T) {
	t.Parallel()

	limits := plan.PositionLimits{{Regime: "Risk-Off", Pct: 5}, {Regime: "Risk-On", Pct: 20}}
	trades := []trade.Trade{
		{EntryPrice: p(100), Shares: p(50)},    // 5000, at the limit
		{EntryPrice: p(100), Shares: p(51)},    // 5100, over
		{EntryPrice: p(100)},                   // no shares
		{Shares: p(1000)},                      // no entry
		{EntryPrice: p(10.5), Shares: p(1000)}, // 10500, over
	}

	vs := CheckSizing(trades, 100000, limits, "Risk-Off / High Vol")
	require.Len(t, vs, 2)
	assert.Equal(t, 1, vs[0].TradeIndex)
	assert.Equal(t, Oversized, vs[0].Type)
	assert.Equal(t, "Position $5100.00 (5.1% of account) exceeds 5% limit ($5000.00) for Risk-Off / High Vol regime", vs[0].Detail)
	assert.Equal(t, 4, vs[1].TradeIndex)

	assert.Empty(t, CheckSizing(trades, 100000, limits, "Risk-On"))
}

func TestCheckSizingNoop(t *testing.T) {
	t.Parallel()

	trades := []trade.Trade{{EntryPrice: p(1000), Shares: p(1000)}}
	limits := plan.PositionLimits{{Regime: "Risk-Off", Pct: 1}}

	assert.Empty(t, CheckSizing(trades, 0, limits, "Risk-Off"))
	assert.Empty(t, CheckSizing(trades, -5, limits, "Risk-Off"))
	assert.Empty(t, CheckSizing(trades, 10000, nil, "Risk-Off"))
	assert.Empty(t, CheckSizing(trades, 10000, limits, "Neutral"))
}

func TestCheckSizingNonFinite(t *testing.T) {
	t.Parallel()

	inf := math.Inf(1)
	limits := plan.PositionLimits{{Regime: "Risk-Off", Pct: 5}}
	trades := []trade.Trade{
		{EntryPrice: p(inf), Shares: p(10)},
		{EntryPrice: p(100), Shares: p(math.NaN())},
		{EntryPrice: p(100), Shares: p(100)},
	}

	var vs []Violation
	require.NotPanics(t, func() { vs = CheckSizing(trades, 10000, limits, "Risk-Off") })
	require.Len(t, vs, 1)
	assert.Equal(t, 2, vs[0].TradeIndex)

	assert.NotPanics(t, func() {
		assert.Empty(t, CheckSizing(trades, inf, limits, "Risk-Off"))
		assert.Empty(t, CheckSizing(trades, 10000, plan.PositionLimits{{Regime: "Risk-Off", Pct: inf}}, "Risk-Off"))
	})
}

func TestRMultiple(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		side  trade.Side
		entry float64
		exit  float64
		stop  float64
		want  float64
		ok    bool
	}{
		{"long half R", trade.Long, 100, 105, 90, 0.5, true},
		{"long stopped", trade.Long, 100, 90, 90, -1, true},
		{"long loss", trade.Long, 100, 95, 90, -0.5, true},
		{"short win", trade.Short, 100, 80, 110, 2, true},
		{"short loss", trade.Short, 100, 105, 110, -0.5, true},
		{"zero risk", trade.Long, 100, 120, 100, 0, false},
		{"tiny risk", trade.Short, 100, 90, 100.00005, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := RMultiple(tt.side, tt.entry, tt.exit, tt.stop)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCheckExits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		trade trade.Trade
		want  []string
	}{
		{"half R is not early", longTrade(100, 105, 90), []string{}},
		{"0.4R is early", longTrade(100, 104, 90), []string{EarlyExit}},
		{"breakeven is early", longTrade(100, 100, 90), []string{EarlyExit}},
		{"2R is fine", longTrade(100, 120, 90), []string{}},
		{"loss above stop", longTrade(100, 95, 90), []string{}},
		{"stopped out", longTrade(100, 90, 90), []string{LateExit}},
		{"stopped within tolerance", longTrade(100, 90.005, 90), []string{LateExit}},
		{"zero risk skipped", longTrade(100, 100, 100), []string{}},
		{
			"short early",
			trade.Trade{RawSide: "short", EntryPrice: p(100), ExitPrice: p(98), StopPrice: p(110)},
			[]string{EarlyExit},
		},
		{
			"short stopped",
			trade.Trade{RawSide: "Short", EntryPrice: p(100), ExitPrice: p(110), StopPrice: p(110)},
			[]string{LateExit},
		},
		{
			"unknown side is long",
			trade.Trade{RawSide: "??", EntryPrice: p(100), ExitPrice: p(103), StopPrice: p(90)},
			[]string{EarlyExit},
		},
		{
			"missing stop skipped",
			trade.Trade{EntryPrice: p(100), ExitPrice: p(100)},
			[]string{},
		},
		{
			"tiny risk stop-out not late",
			trade.Trade{EntryPrice: p(100), ExitPrice: p(99.995), StopPrice: p(99.995)},
			[]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vs := CheckExits([]trade.Trade{tt.trade})
			assert.Equal(t, tt.want, typesOf(vs))
			for _, v := range vs {
				assert.Equal(t, 0, v.TradeIndex)
			}
		})
	}
}

func TestEvaluateOrder(t *testing.T) {
	t.Parallel()

	pl := &plan.Plan{
		AllowedRegimes: []string{"Risk-On"},
		StopRequired:   true,
		AccountSize:    10000,
		PositionLimits: plan.PositionLimits{{Regime: "Risk-Off", Pct: 10}},
	}
	trades := []trade.Trade{
		{EntryPrice: p(100), ExitPrice: p(101), StopPrice: p(90), Shares: p(20)},
		{EntryPrice: p(100), ExitPrice: p(101), Shares: p(5)},
	}

	vs := Evaluate(trades, pl, "Risk-Off")
	assert.Equal(t, []string{
		RegimeMismatch, RegimeMismatch,
		MissingStop,
		Oversized,
		EarlyExit,
	}, typesOf(vs))
	assert.Equal(t, []int{0, 1, 1, 0, 0}, []int{vs[0].TradeIndex, vs[1].TradeIndex, vs[2].TradeIndex, vs[3].TradeIndex, vs[4].TradeIndex})
}

func TestEvaluateStopsOptional(t *testing.T) {
	t.Parallel()

	pl := &plan.Plan{AllowedRegimes: []string{"Risk-On"}}
	trades := []trade.Trade{{Symbol: "A"}, {Symbol: "B"}}

	vs := Evaluate(trades, pl, "Risk-On")
	assert.NotNil(t, vs)
	assert.Empty(t, vs)
}
