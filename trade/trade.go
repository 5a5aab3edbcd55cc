// trade/trade.go
package trade

import "strings"

// Side is the direction of a trade.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ParseSide maps a raw side value to a Side. Matching is case-insensitive.
// Empty and unrecognized values are treated as Long.
func ParseSide(s string) Side {
	if strings.EqualFold(strings.TrimSpace(s), string(Short)) {
		return Short
	}
	return Long
}

// Trade is one executed trade from the analyst's log. Numeric fields are
// pointers because a missing value matters to the checks: a nil StopPrice
// means no stop was set.
type Trade struct {
	Date       string
	Symbol     string
	RawSide    string
	EntryPrice *float64
	ExitPrice  *float64
	Shares     *float64
	StopPrice  *float64
}

// Side returns the parsed side, LONG when absent.
func (t Trade) Side() Side {
	return ParseSide(t.RawSide)
}

// HasStop reports whether a stop price was recorded.
func (t Trade) HasStop() bool {
	return t.StopPrice != nil
}

// Price returns a pointer to p, for building trades in code.
func Price(p float64) *float64 {
	return &p
}
