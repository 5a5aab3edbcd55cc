package rules

import (
	"github.com/rustyeddy/discipline/plan"
	"github.com/rustyeddy/discipline/trade"
)

// Evaluate runs every applicable check against trades and returns the
// violations in canonical order: regime, stops, sizing, exits.
func Evaluate(trades []trade.Trade, p *plan.Plan, regime string) []Violation {
	out := []Violation{}
	out = append(out, CheckRegime(trades, p.AllowedRegimes, regime)...)
	if p.StopRequired {
		out = append(out, CheckStops(trades)...)
	}
	out = append(out, CheckSizing(trades, p.AccountSize, p.PositionLimits, regime)...)
	out = append(out, CheckExits(trades)...)
	return out
}
