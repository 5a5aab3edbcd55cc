package rules

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/discipline/plan"
	"github.com/rustyeddy/discipline/trade"
)

var hundred = decimal.NewFromInt(100)

// CheckSizing flags trades whose position value exceeds the regime's limit.
// It does nothing when accountSize is not positive or no limit resolves for
// regime. Trades missing entry price or shares are skipped, as are
// non-finite values, which decimal cannot represent.
func CheckSizing(trades []trade.Trade, accountSize float64, limits plan.PositionLimits, regime string) []Violation {
	if accountSize <= 0 || !finite(accountSize) {
		return nil
	}
	pct, ok := limits.Resolve(regime)
	if !ok || !finite(pct) {
		return nil
	}

	account := decimal.NewFromFloat(accountSize)
	limitPct := decimal.NewFromFloat(pct)
	maxValue := limitPct.Div(hundred).Mul(account)

	var vs violations
	for i, t := range trades {
		if t.EntryPrice == nil || t.Shares == nil || !finite(*t.EntryPrice) || !finite(*t.Shares) {
			continue
		}
		value := decimal.NewFromFloat(*t.EntryPrice).Mul(decimal.NewFromFloat(*t.Shares))
		if !value.GreaterThan(maxValue) {
			continue
		}
		vs.add(i, Oversized, fmt.Sprintf(
			"Position $%s (%s%% of account) exceeds %s%% limit ($%s) for %s regime",
			value.StringFixed(2),
			value.Div(account).Mul(hundred).StringFixed(1),
			limitPct.String(),
			maxValue.StringFixed(2),
			regime,
		))
	}
	return vs
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
