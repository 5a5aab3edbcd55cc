package rules

import (
	"fmt"

	"github.com/rustyeddy/discipline/trade"
)

// CheckRegime flags every trade when regime is not in allowed. Eligibility is
// all or nothing: a trade taken in a disallowed regime is non-compliant on
// its own merits.
func CheckRegime(trades []trade.Trade, allowed []string, regime string) []Violation {
	for _, r := range allowed {
		if r == regime {
			return nil
		}
	}

	var vs violations
	for i := range trades {
		vs.add(i, RegimeMismatch, fmt.Sprintf("Trade taken during %s regime", regime))
	}
	return vs
}
