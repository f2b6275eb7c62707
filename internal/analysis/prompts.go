package analysis

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/credit-predictor/internal/model"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Kind names one prompt in the pack.
type Kind string

// Prompt kinds. Combined is the single-call analysis; the rest back the
// fan-out calls.
const (
	KindCombined    Kind = "combined"
	KindExplanation Kind = "explanation"
	KindAdvice      Kind = "advice"
	KindAnomalies   Kind = "anomalies"
)

var allKinds = []Kind{KindCombined, KindExplanation, KindAdvice, KindAnomalies}

// Prompt is one entry of the pack as written in YAML.
type Prompt struct {
	System   string `yaml:"system"`
	Template string `yaml:"template"`
	Schema   string `yaml:"schema"`
}

type promptFile struct {
	Prompts map[Kind]Prompt `yaml:"prompts"`
}

type compiled struct {
	system string
	tmpl   *template.Template
	schema string
}

// PromptSet holds the parsed prompt pack. Build it once and share it;
// it is read-only after construction.
type PromptSet struct {
	prompts map[Kind]compiled
}

// DefaultPromptSet parses the embedded prompt pack.
func DefaultPromptSet() (*PromptSet, error) {
	return ParsePromptSet(defaultPrompts)
}

// LoadPromptSet reads a prompt pack from path, or the embedded pack when
// path is empty.
func LoadPromptSet(path string) (*PromptSet, error) {
	if path == "" {
		return DefaultPromptSet()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: read prompts %s", path)
	}
	return ParsePromptSet(data)
}

// ParsePromptSet parses YAML prompt pack data. Every kind must be present
// with a template and a schema.
func ParsePromptSet(data []byte) (*PromptSet, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "analysis: parse prompts")
	}

	ps := &PromptSet{prompts: make(map[Kind]compiled, len(allKinds))}
	for _, k := range allKinds {
		p, ok := f.Prompts[k]
		if !ok {
			return nil, eris.Errorf("analysis: prompt %q missing", k)
		}
		if strings.TrimSpace(p.Template) == "" || strings.TrimSpace(p.Schema) == "" {
			return nil, eris.Errorf("analysis: prompt %q needs a template and a schema", k)
		}
		tmpl, err := template.New(string(k)).Option("missingkey=error").Parse(p.Template)
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: compile prompt %q", k)
		}
		ps.prompts[k] = compiled{system: strings.TrimSpace(p.System), tmpl: tmpl, schema: p.Schema}
	}
	return ps, nil
}

// promptData is what templates render against.
type promptData struct {
	Income             string
	Debts              string
	PaymentHistory     string
	Score              int
	FinancialSituation string
}

var (
	printer     = message.NewPrinter(language.English)
	maxGroupInt = decimal.NewFromInt(math.MaxInt64)
)

// formatAmount renders 50000 as "50,000" and 1250.5 as "1,250.50". Values
// outside the int64 range keep their exact digits without grouping.
func formatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	if d.IsInteger() {
		fixed = d.Abs().String()
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	w, err := decimal.NewFromString(whole)
	if err != nil || w.GreaterThan(maxGroupInt) {
		return sign + fixed
	}
	out := sign + printer.Sprintf("%d", w.IntPart())
	if frac != "" {
		out += "." + frac
	}
	return out
}

func newPromptData(p model.Profile, score int) promptData {
	income, debts := formatAmount(p.Income()), formatAmount(p.Debts())
	return promptData{
		Income:         income,
		Debts:          debts,
		PaymentHistory: string(p.PaymentHistory()),
		Score:          score,
		FinancialSituation: fmt.Sprintf(
			"The user has an annual income of $%s, total debts of $%s, and their payment history is described as %s.",
			income, debts, p.PaymentHistory()),
	}
}

// render returns the system text and user prompt for kind, with the
// output instruction appended.
func (ps *PromptSet) render(kind Kind, data promptData) (system, prompt string, err error) {
	c, ok := ps.prompts[kind]
	if !ok {
		return "", "", eris.Errorf("analysis: unknown prompt %q", kind)
	}
	var b strings.Builder
	if err := c.tmpl.Execute(&b, data); err != nil {
		return "", "", eris.Wrapf(err, "analysis: render prompt %q", kind)
	}
	b.WriteString("\nRespond with only a JSON object of this shape, no prose and no code fences:\n")
	b.WriteString(c.schema)
	return c.system, b.String(), nil
}
