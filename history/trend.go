package history

// Trend is the recent direction of compliance scores.
type Trend string

const (
	Improving Trend = "improving"
	Worsening Trend = "worsening"
	Flat      Trend = "flat"
)

const (
	// TrendWindow is how many of the most recent runs are considered.
	TrendWindow = 5
	// TrendThreshold is the mean change needed to call a direction.
	TrendThreshold = 0.02
)

// ClassifyScores classifies the last TrendWindow scores, oldest first. With
// two or three scores the first and last are compared; with four or more the
// window is split at its midpoint and the halves' means are compared.
func ClassifyScores(scores []float64) Trend {
	if len(scores) > TrendWindow {
		scores = scores[len(scores)-TrendWindow:]
	}
	if len(scores) < 2 {
		return Flat
	}

	var first, second []float64
	if len(scores) >= 4 {
		mid := len(scores) / 2
		first, second = scores[:mid], scores[mid:]
	} else {
		first, second = scores[:1], scores[len(scores)-1:]
	}

	a, b := mean(first), mean(second)
	switch {
	case b > a+TrendThreshold:
		return Improving
	case b < a-TrendThreshold:
		return Worsening
	default:
		return Flat
	}
}

// Trend classifies the state's recent runs.
func (s State) Trend() Trend {
	return ClassifyScores(s.Scores())
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
