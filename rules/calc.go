package rules

import (
	"math"

	"github.com/rustyeddy/discipline/trade"
)

const (
	// MinRiskDistance is the smallest entry-to-stop distance with a defined R.
	MinRiskDistance = 0.0001
	// EarlyExitR is the R-multiple a profitable exit must reach.
	EarlyExitR = 0.5
	// StopTolerance is how close an exit must be to the stop to count as a stop-out.
	StopTolerance = 0.01
	// MinStopRisk is the risk distance above which a stop-out is flagged.
	MinStopRisk = 0.01
)

// RiskDistance is the planned loss per share if the stop is hit: entry minus
// stop for longs, stop minus entry for shorts.
func RiskDistance(side trade.Side, entry, stop float64) float64 {
	if side == trade.Short {
		return stop - entry
	}
	return entry - stop
}

// RMultiple expresses the realized move in units of risk. ok is false when the
// risk distance is too small for R to mean anything.
func RMultiple(side trade.Side, entry, exit, stop float64) (r float64, ok bool) {
	risk := RiskDistance(side, entry, stop)
	if math.Abs(risk) < MinRiskDistance {
		return 0, false
	}
	if side == trade.Short {
		return (entry - exit) / risk, true
	}
	return (exit - entry) / risk, true
}
