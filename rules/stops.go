package rules

import "github.com/rustyeddy/discipline/trade"

// CheckStops flags trades with no stop price. Callers run it only when the
// plan requires stops.
func CheckStops(trades []trade.Trade) []Violation {
	var vs violations
	for i, t := range trades {
		if !t.HasStop() {
			vs.add(i, MissingStop, "Stop required but not provided")
		}
	}
	return vs
}
