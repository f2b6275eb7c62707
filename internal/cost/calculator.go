// Package cost estimates the USD cost of AI completions from token usage.
package cost

import (
	"strings"

	"github.com/sells-group/credit-predictor/internal/config"
)

// Usage is the token count reported for one completion.
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Calculator prices completions using per-model rates.
type Calculator struct {
	rates map[string]config.ModelPricing
}

// NewCalculator creates a Calculator from the pricing config section.
func NewCalculator(p config.PricingConfig) *Calculator {
	rates := make(map[string]config.ModelPricing, len(p.Models))
	for name, r := range p.Models {
		rates[strings.ToLower(name)] = r
	}
	return &Calculator{rates: rates}
}

// Estimate returns the cost of u. ok is false when the model has no rate,
// in which case the cost is 0.
func (c *Calculator) Estimate(u Usage) (usd float64, ok bool) {
	if c == nil {
		return 0, false
	}
	rate, ok := c.lookup(u.Model)
	if !ok {
		return 0, false
	}
	in := (float64(u.InputTokens) / 1e6) * rate.Input
	out := (float64(u.OutputTokens) / 1e6) * rate.Output
	return in + out, true
}

// lookup matches the model exactly, then by the longest configured prefix,
// so dated snapshots ("gpt-4o-mini-2024-07-18") inherit their family's rate.
func (c *Calculator) lookup(model string) (config.ModelPricing, bool) {
	model = strings.ToLower(model)
	if r, ok := c.rates[model]; ok {
		return r, true
	}
	var (
		best    config.ModelPricing
		bestLen int
	)
	for name, r := range c.rates {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = r, len(name)
		}
	}
	return best, bestLen > 0
}
