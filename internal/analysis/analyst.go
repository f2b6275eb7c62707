// Package analysis turns a scored profile into an explanation, advice and
// anomaly findings by prompting a generative-AI backend.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/cost"
	"github.com/sells-group/credit-predictor/internal/model"
	"github.com/sells-group/credit-predictor/internal/resilience"
)

const defaultMaxTokens = 1024

// Options configures an Analyst. Backend and Prompts are required.
type Options struct {
	Backend   Backend
	Prompts   *PromptSet
	MaxTokens int64
	Cost      *cost.Calculator
	Breaker   *resilience.Breaker
}

// Analyst issues analysis calls. Safe for concurrent use.
type Analyst struct {
	backend   Backend
	prompts   *PromptSet
	maxTokens int64
	cost      *cost.Calculator
	breaker   *resilience.Breaker
}

// New validates opts and returns an Analyst.
func New(opts Options) (*Analyst, error) {
	if opts.Backend == nil {
		return nil, eris.New("analysis: backend is required")
	}
	if opts.Prompts == nil {
		return nil, eris.New("analysis: prompt set is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Analyst{
		backend:   opts.Backend,
		prompts:   opts.Prompts,
		maxTokens: opts.MaxTokens,
		cost:      opts.Cost,
		breaker:   opts.Breaker,
	}, nil
}

// CircuitState reports the breaker position, or closed when there is none.
func (a *Analyst) CircuitState() resilience.State {
	if a.breaker == nil {
		return resilience.Closed
	}
	return a.breaker.State()
}

// Analyze produces explanation, advice and anomalies in one call.
func (a *Analyst) Analyze(ctx context.Context, p model.Profile, score int) (model.AnalysisResult, error) {
	text, err := a.complete(ctx, KindCombined, newPromptData(p, score))
	if err != nil {
		return model.AnalysisResult{}, err
	}
	res, err := parseCombined(text)
	if err != nil {
		return model.AnalysisResult{}, schemaError(KindCombined, err)
	}
	return res, nil
}

// Explain describes the factors behind score.
func (a *Analyst) Explain(ctx context.Context, p model.Profile, score int) (string, error) {
	text, err := a.complete(ctx, KindExplanation, newPromptData(p, score))
	if err != nil {
		return "", err
	}
	out, err := parseText(model.ComponentExplanation, text)
	if err != nil {
		return "", schemaError(KindExplanation, err)
	}
	return out, nil
}

// Advise suggests steps to improve score.
func (a *Analyst) Advise(ctx context.Context, p model.Profile, score int) (string, error) {
	text, err := a.complete(ctx, KindAdvice, newPromptData(p, score))
	if err != nil {
		return "", err
	}
	out, err := parseText(model.ComponentAdvice, text)
	if err != nil {
		return "", schemaError(KindAdvice, err)
	}
	return out, nil
}

// DetectAnomalies lists values outside normal ranges. The slice is empty,
// not nil, when there are none.
func (a *Analyst) DetectAnomalies(ctx context.Context, p model.Profile) ([]string, error) {
	text, err := a.complete(ctx, KindAnomalies, newPromptData(p, 0))
	if err != nil {
		return nil, err
	}
	out, err := parseAnomalies(text)
	if err != nil {
		return nil, schemaError(KindAnomalies, err)
	}
	return out, nil
}

func (a *Analyst) complete(ctx context.Context, kind Kind, data promptData) (string, error) {
	system, prompt, err := a.prompts.render(kind, data)
	if err != nil {
		return "", schemaError(kind, err)
	}

	start := time.Now()
	res, err := resilience.Call(ctx, a.breaker, func(ctx context.Context) (*CompletionResult, error) {
		return a.backend.Complete(ctx, Completion{System: system, Prompt: prompt, MaxTokens: a.maxTokens})
	})
	if err != nil {
		return "", classify(kind, err)
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return "", &BackendError{Op: kind, Kind: KindEmpty, Err: eris.New("empty response")}
	}

	usd, priced := a.cost.Estimate(cost.Usage{
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	})
	zap.L().Info("analysis: completion",
		zap.String("op", string(kind)),
		zap.String("model", res.Model),
		zap.Int64("input_tokens", res.InputTokens),
		zap.Int64("output_tokens", res.OutputTokens),
		zap.Float64("estimated_cost_usd", usd),
		zap.Bool("priced", priced),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res.Text, nil
}
