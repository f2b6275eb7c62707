// Package scorer implements the deterministic credit-score formula.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-predictor/internal/config"
)

// DefaultScorerConfig returns the constants of the published formula.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		BaseScore: 300,
		MinScore:  300,
		MaxScore:  850,

		// Payment history points.
		ExcellentPoints: 200,
		GoodPoints:      150,
		FairPoints:      100,
		PoorPoints:      50,

		DTIWeight:    250,
		IncomeWeight: 150,
		IncomeCap:    200_000, // income credit saturates here
	}
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	if c.MinScore < 0 {
		errs = append(errs, "min_score must be >= 0")
	}
	if c.MaxScore < c.MinScore {
		errs = append(errs, "max_score must be >= min_score")
	}

	// All weights must be non-negative.
	weights := map[string]float64{
		"excellent_points": c.ExcellentPoints,
		"good_points":      c.GoodPoints,
		"fair_points":      c.FairPoints,
		"poor_points":      c.PoorPoints,
		"dti_weight":       c.DTIWeight,
		"income_weight":    c.IncomeWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	// Better history must never score lower.
	if c.PoorPoints > c.FairPoints || c.FairPoints > c.GoodPoints || c.GoodPoints > c.ExcellentPoints {
		errs = append(errs, "payment points must be ordered poor <= fair <= good <= excellent")
	}

	if c.IncomeCap <= 0 {
		errs = append(errs, "income_cap must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
