package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/discipline/report"
	"github.com/rustyeddy/discipline/rules"
)

// ErrUnavailable means no coaching could be produced. It never affects the
// report the coaching is about.
var ErrUnavailable = errors.New("coaching unavailable")

// MaxPromptViolations caps how many violations are described to the coach.
const MaxPromptViolations = 10

// Input is the read-only view of a finished report that a coach sees.
type Input struct {
	Violations       []rules.Violation
	ViolationSummary map[string]int
	ComplianceScore  float64
}

// FromReport builds coaching input from a report.
func FromReport(r report.DisciplineReport) Input {
	return Input{
		Violations:       r.Violations,
		ViolationSummary: r.ViolationSummary,
		ComplianceScore:  r.ComplianceScore,
	}
}

// Coach turns violations into behavioral advice.
type Coach interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// Advice is the outcome of asking a coach. When Available is false, Reason
// says why.
type Advice struct {
	Available bool   `json:"available"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Advise asks c for coaching. It never returns an error or panics; every
// failure becomes an unavailable Advice.
func Advise(ctx context.Context, c Coach, in Input) (adv Advice) {
	if c == nil {
		return Advice{Reason: "no coach configured"}
	}
	defer func() {
		if r := recover(); r != nil {
			adv = Advice{Reason: fmt.Sprintf("coach failed: %v", r)}
		}
	}()

	text, err := c.Summarize(ctx, in)
	if err != nil {
		return Advice{Reason: strings.TrimPrefix(err.Error(), ErrUnavailable.Error()+": ")}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Advice{Reason: "empty coaching response"}
	}
	return Advice{Available: true, Text: text}
}

// Prompt renders in as the user message sent to a language model.
func Prompt(in Input) string {
	counts := report.SortedCounts(in.ViolationSummary)
	types := make([]string, len(counts))
	nums := make([]string, len(counts))
	for i, c := range counts {
		types[i] = c.Type
		nums[i] = fmt.Sprint(c.Count)
	}

	var b strings.Builder
	b.WriteString("Analyze these trading discipline violations and provide coaching:\n\n")
	fmt.Fprintf(&b, "Compliance Score: %.2f\n", in.ComplianceScore)
	fmt.Fprintf(&b, "Violation Types: %s\n", strings.Join(types, ", "))
	fmt.Fprintf(&b, "Violation Counts: %s\n\n", strings.Join(nums, ", "))
	b.WriteString("Violations:\n")
	for i, v := range in.Violations {
		if i == MaxPromptViolations {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", v.Type, v.Detail)
	}
	return b.String()
}

// Noop is used when coaching is disabled.
type Noop struct{}

func (Noop) Summarize(context.Context, Input) (string, error) {
	return "", fmt.Errorf("%w: coaching disabled", ErrUnavailable)
}
