package report

import (
	"io"
	"text/template"
	"time"
)

// Meta carries run context that is shown alongside a report but is not part
// of it.
type Meta struct {
	RunID      string
	Regime     string
	Trades     int
	TradesFile string
	PlanFile   string
	Created    time.Time
}

type orgView struct {
	DisciplineReport
	Meta
	Counts []TypeCount
}

var orgFuncs = template.FuncMap{
	"pct": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var orgTemplate = template.Must(template.New("discipline").Funcs(orgFuncs).Parse(OrgTemplate))

// WriteOrg renders r as an Org-mode block.
func WriteOrg(w io.Writer, r DisciplineReport, m Meta) error {
	return orgTemplate.Execute(w, orgView{DisciplineReport: r, Meta: m, Counts: SortedCounts(r.ViolationSummary)})
}

const OrgTemplate = `* DISCIPLINE: {{if .Regime}}{{.Regime}}{{else}}(regime?){{end}}
:PROPERTIES:
:RUN_ID:        {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:REGIME:        {{.Regime}}
:TRADES:        {{.Trades}}
{{- if .TradesFile}}
:TRADES_FILE:   {{.TradesFile}}
{{- end}}
{{- if .PlanFile}}
:PLAN_FILE:     {{.PlanFile}}
{{- end}}
:COMPLIANCE:    {{printf "%.2f" .ComplianceScore}}
:MISMATCH_RATE: {{printf "%.2f" .RegimeMismatchRate}}
:TREND:         {{.ComplianceTrend}}
:CREATED:       [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Summary
- Compliance Score:     *{{printf "%.0f" (pct .ComplianceScore)}}%*
- Regime Mismatch Rate: *{{printf "%.0f" (pct .RegimeMismatchRate)}}%*
- Trend:                *{{.ComplianceTrend}}*

** Violations
{{- if .Violations}}
| Type | Count |
|------+-------|
{{- range .Counts}}
| {{.Type}} | {{.Count}} |
{{- end}}
{{range .Violations}}
- Trade #{{.TradeIndex}} - {{.Type}}: {{.Detail}}
{{- end}}
{{- else}}
No violations detected. Discipline intact.
{{- end}}
`
