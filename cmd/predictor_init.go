package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/analysis"
	"github.com/sells-group/credit-predictor/internal/config"
	"github.com/sells-group/credit-predictor/internal/cost"
	"github.com/sells-group/credit-predictor/internal/predict"
	"github.com/sells-group/credit-predictor/internal/resilience"
	"github.com/sells-group/credit-predictor/internal/scorer"
	anthropicpkg "github.com/sells-group/credit-predictor/pkg/anthropic"
	"github.com/sells-group/credit-predictor/pkg/chatmodel"
)

// predictorEnv holds the wired predictor and the analyst behind it, which
// the serve command also exposes as the circuit reporter.
type predictorEnv struct {
	Predictor *predict.Predictor
	Analyst   *analysis.Analyst
}

// initPredictor validates cfg for mode and builds the scorer, AI backend,
// circuit breaker and predictor.
func initPredictor(ctx context.Context, c *config.Config, mode string) (*predictorEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	sc, err := scorer.New(c.Scorer)
	if err != nil {
		return nil, err
	}

	prompts, err := loadPrompts(c.Predict.PromptsFile)
	if err != nil {
		return nil, err
	}

	aiTimeout := time.Duration(c.Predict.AITimeoutSecs) * time.Second
	backend, err := initBackend(ctx, c.AI, aiTimeout)
	if err != nil {
		return nil, err
	}

	analyst, err := analysis.New(analysis.Options{
		Backend:   backend,
		Prompts:   prompts,
		MaxTokens: c.AI.MaxTokens,
		Cost:      cost.NewCalculator(c.Pricing),
		Breaker:   resilience.NewBreaker(resilience.OptionsFromConfig("ai-backend", c.Circuit)),
	})
	if err != nil {
		return nil, err
	}

	pred, err := predict.New(predict.Options{
		Scorer:    sc,
		Analyst:   analyst,
		Mode:      c.Predict.Mode,
		AITimeout: aiTimeout,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("predictor initialized",
		zap.String("provider", c.AI.Provider),
		zap.String("mode", pred.Mode()),
		zap.Duration("ai_timeout", aiTimeout),
	)

	return &predictorEnv{Predictor: pred, Analyst: analyst}, nil
}

func loadPrompts(path string) (*analysis.PromptSet, error) {
	if path == "" {
		return analysis.DefaultPromptSet()
	}
	return analysis.LoadPromptSet(path)
}

func initBackend(ctx context.Context, ai config.AIConfig, timeout time.Duration) (analysis.Backend, error) {
	switch ai.Provider {
	case "anthropic":
		opts := []anthropicpkg.Option{anthropicpkg.WithRequestTimeout(timeout)}
		if ai.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(ai.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(ai.Anthropic.Key, opts...)
		return analysis.NewAnthropicBackend(client, ai.Anthropic.Model), nil
	case "openai":
		client, err := chatmodel.New(ctx, chatmodel.Config{
			BaseURL: ai.OpenAI.BaseURL,
			APIKey:  ai.OpenAI.Key,
			Model:   ai.OpenAI.Model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return analysis.NewChatModelBackend(client), nil
	default:
		return nil, eris.Errorf("unknown ai provider %q", ai.Provider)
	}
}
