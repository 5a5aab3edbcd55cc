package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingAllowedRegimes is returned when a plan does not declare
// allowed_regimes. It is an input error, not a violation.
var ErrMissingAllowedRegimes = errors.New("plan missing required field: 'allowed_regimes'")

// Plan holds the trading rules a run is checked against. Unknown keys in the
// source document are ignored.
type Plan struct {
	AllowedRegimes []string       `json:"allowed_regimes" yaml:"allowed_regimes" validate:"required,dive,required"`
	StopRequired   bool           `json:"stop_required" yaml:"stop_required"`
	AccountSize    float64        `json:"account_size" yaml:"account_size" validate:"finite,gte=0"`
	PositionLimits PositionLimits `json:"position_limits_by_regime" yaml:"position_limits_by_regime" validate:"dive"`
}

// Limit caps position value for one regime label or label prefix, as a
// percentage of account size. An empty Regime is a prefix of every label and
// acts as a catch-all.
type Limit struct {
	Regime string  `json:"regime"`
	Pct    float64 `json:"pct" validate:"finite,gte=0"`
}

// PositionLimits keeps the declaration order of position_limits_by_regime so
// prefix resolution is deterministic.
type PositionLimits []Limit

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	return v
}

// Load reads a plan from a YAML or JSON file and validates it.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan document. YAML is tried first, then JSON.
func Parse(data []byte) (*Plan, error) {
	p := &Plan{}
	if err := yaml.Unmarshal(data, p); err != nil {
		p = &Plan{}
		if jerr := json.Unmarshal(data, p); jerr != nil {
			return nil, fmt.Errorf("parse plan (tried YAML and JSON): %w", jerr)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the plan once at the boundary so the rules can trust it.
func (p *Plan) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid plan: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Field() == "allowed_regimes" && fe.Tag() == "required" {
			return ErrMissingAllowedRegimes
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid plan: %s", strings.Join(msgs, "; "))
}

// Allows reports whether regime is one of the plan's allowed regimes.
func (p *Plan) Allows(regime string) bool {
	for _, r := range p.AllowedRegimes {
		if r == regime {
			return true
		}
	}
	return false
}

// PositionLimit resolves the limit for regime: an exact key wins, otherwise
// the first declared key that is a prefix of regime.
func (p *Plan) PositionLimit(regime string) (float64, bool) {
	return p.PositionLimits.Resolve(regime)
}

// Resolve is PositionLimit on a bare limit list.
func (l PositionLimits) Resolve(regime string) (float64, bool) {
	for _, lim := range l {
		if lim.Regime == regime {
			return lim.Pct, true
		}
	}
	for _, lim := range l {
		if strings.HasPrefix(regime, lim.Regime) {
			return lim.Pct, true
		}
	}
	return 0, false
}

// UnmarshalYAML decodes a mapping of regime to percentage in document order.
func (l *PositionLimits) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*l = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("position_limits_by_regime: expected mapping, line %d", node.Line)
	}

	out := make(PositionLimits, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var pct float64
		if err := node.Content[i+1].Decode(&pct); err != nil {
			return fmt.Errorf("position_limits_by_regime[%s]: %w", node.Content[i].Value, err)
		}
		out = append(out, Limit{Regime: node.Content[i].Value, Pct: pct})
	}
	*l = out
	return nil
}

// UnmarshalJSON decodes a JSON object of regime to percentage in document order.
func (l *PositionLimits) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("position_limits_by_regime: expected object")
	}

	out := PositionLimits{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)

		var pct float64
		if err := dec.Decode(&pct); err != nil {
			return fmt.Errorf("position_limits_by_regime[%s]: %w", key, err)
		}
		out = append(out, Limit{Regime: key, Pct: pct})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}
