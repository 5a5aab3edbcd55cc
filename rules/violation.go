package rules

import "fmt"

// Violation types, in the order the checks run.
const (
	RegimeMismatch = "Regime Mismatch"
	MissingStop    = "Missing Stop"
	Oversized      = "Oversized for Regime"
	EarlyExit      = "Early Exit"
	LateExit       = "Late Exit"
)

// Violation is one departure from the plan, attributed to the zero-based
// position of a trade in the input.
type Violation struct {
	TradeIndex int    `json:"trade_index" yaml:"trade_index"`
	Type       string `json:"violation_type" yaml:"violation_type"`
	Detail     string `json:"detail" yaml:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("Trade #%d - %s: %s", v.TradeIndex, v.Type, v.Detail)
}

type violations []Violation

func (vs *violations) add(idx int, typ, detail string) {
	*vs = append(*vs, Violation{TradeIndex: idx, Type: typ, Detail: detail})
}
