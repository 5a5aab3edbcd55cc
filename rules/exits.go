package rules

import (
	"fmt"
	"math"

	"github.com/rustyeddy/discipline/trade"
)

// CheckExits grades exits by R-multiple. Trades need entry, exit and stop;
// others are skipped, as are trades with a degenerate risk distance.
//
// Late Exit fires on every stop-out with meaningful risk. Without peak prices
// a stop hit after running into profit cannot be told apart from one hit
// straight after entry, so every stop-out is reported as possibly giving
// back profit.
func CheckExits(trades []trade.Trade) []Violation {
	var vs violations
	for i, t := range trades {
		if t.EntryPrice == nil || t.ExitPrice == nil || t.StopPrice == nil {
			continue
		}
		entry, exit, stop := *t.EntryPrice, *t.ExitPrice, *t.StopPrice
		side := t.Side()

		r, ok := RMultiple(side, entry, exit, stop)
		if !ok {
			continue
		}
		if r >= 0 && r < EarlyExitR {
			vs.add(i, EarlyExit, fmt.Sprintf(
				"Exited at %.2fR, before reaching %.1fR", r, EarlyExitR))
		}

		risk := RiskDistance(side, entry, stop)
		if math.Abs(exit-stop) <= StopTolerance && math.Abs(risk) > MinStopRisk {
			vs.add(i, LateExit, fmt.Sprintf(
				"Stopped out at %.2f with %.2f risk per share; profit may have been given back", exit, math.Abs(risk)))
		}
	}
	return vs
}
