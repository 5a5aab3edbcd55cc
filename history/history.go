// history/history.go
package history

import (
	"errors"
	"time"

	"github.com/rustyeddy/discipline/rules"
)

var (
	// ErrCorrupt marks a store whose contents could not be decoded.
	ErrCorrupt = errors.New("history store corrupt")
	// ErrUnreadable marks a store that exists but could not be read.
	ErrUnreadable = errors.New("history store unreadable")
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	RunID            string            `json:"run_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at,omitzero"`
	Regime           string            `json:"regime,omitempty"`
	TradeCount       int               `json:"trade_count,omitempty"`
	ComplianceScore  float64           `json:"compliance_score"`
	Violations       []rules.Violation `json:"violations"`
	ViolationSummary map[string]int    `json:"violation_summary"`
}

// State is everything persisted under one store key. History is oldest
// first and only grows.
type State struct {
	History []RunRecord `json:"history"`
}

// Empty returns a state with no runs.
func Empty() State {
	return State{History: []RunRecord{}}
}

// Append adds rec as the newest run.
func (s *State) Append(rec RunRecord) {
	s.History = append(s.History, rec)
}

// Scores returns the compliance score of every run, oldest first.
func (s State) Scores() []float64 {
	out := make([]float64, len(s.History))
	for i, r := range s.History {
		out[i] = r.ComplianceScore
	}
	return out
}

// Store persists history state under a key.
//
// Load never fails a run: a missing store yields an empty state and a nil
// error. A store that cannot be read or decoded yields whatever runs it could
// recover (possibly none) and an error wrapping ErrUnreadable or ErrCorrupt,
// which callers report and then continue with the returned state. Damaged
// data is set aside, never overwritten, so Save must not destroy it either;
// Save errors must be surfaced.
type Store interface {
	Load(key string) (State, error)
	Save(key string, s State) error
}

// Inspector reads history without the repairs Load performs.
type Inspector interface {
	Inspect(key string) (State, error)
}

func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
