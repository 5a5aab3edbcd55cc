package report

import (
	"math"
	"sort"

	"github.com/rustyeddy/discipline/history"
	"github.com/rustyeddy/discipline/rules"
)

// DisciplineReport is the result of one run. It is returned to the caller and
// never persisted itself.
type DisciplineReport struct {
	ComplianceScore    float64           `json:"compliance_score"`
	Violations         []rules.Violation `json:"violations"`
	RegimeMismatchRate float64           `json:"regime_mismatch_rate"`
	ViolationSummary   map[string]int    `json:"violation_summary"`
	ComplianceTrend    history.Trend     `json:"compliance_trend"`
}

// Summary holds the aggregate statistics of one run.
type Summary struct {
	ComplianceScore    float64
	RegimeMismatchRate float64
	ViolationSummary   map[string]int
}

// Summarize aggregates violations over n trades.
func Summarize(vs []rules.Violation, n int) Summary {
	return Summary{
		ComplianceScore:    Score(vs, n),
		RegimeMismatchRate: MismatchRate(vs, n),
		ViolationSummary:   Counts(vs),
	}
}

// Score is 1 minus violations per trade, rounded to two places and floored at
// zero. Every violation costs one unit, so a trade with two violations costs
// two. An empty trade log divides by one.
func Score(vs []rules.Violation, n int) float64 {
	return math.Max(0, round2(1-float64(len(vs))/float64(max(n, 1))))
}

// MismatchRate is the share of trades flagged for regime mismatch.
func MismatchRate(vs []rules.Violation, n int) float64 {
	c := 0
	for _, v := range vs {
		if v.Type == rules.RegimeMismatch {
			c++
		}
	}
	return round2(float64(c) / float64(max(n, 1)))
}

// Counts tallies violations by type.
func Counts(vs []rules.Violation) map[string]int {
	out := make(map[string]int)
	for _, v := range vs {
		out[v.Type]++
	}
	return out
}

// TypeCount is one row of a sorted violation summary.
type TypeCount struct {
	Type  string
	Count int
}

// SortedCounts orders a summary by descending count, then by type.
func SortedCounts(summary map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(summary))
	for typ, c := range summary {
		out = append(out, TypeCount{Type: typ, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
