package predict

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-predictor/internal/model"
)

// settled is the outcome of one fan-out task: a value or an error, never
// a panic.
type settled[T any] struct {
	Value T
	Err   error
}

func settle[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) (out settled[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = settled[T]{Err: eris.Errorf("predict: %s panicked: %v", op, r)}
		}
	}()
	v, err := fn(ctx)
	return settled[T]{Value: v, Err: err}
}

// analyzeFanout runs the three analysis calls concurrently and waits for
// all of them. Each failure is replaced by its own fallback.
func (p *Predictor) analyzeFanout(ctx context.Context, log *zap.Logger, prof model.Profile, score int) (model.AnalysisResult, []string) {
	ctx, cancel := context.WithTimeout(ctx, p.aiTimeout)
	defer cancel()

	var (
		anomalies   settled[[]string]
		explanation settled[string]
		advice      settled[string]
	)

	// Tasks never return an error, so one failure cannot cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		anomalies = settle(ctx, model.ComponentAnomalies, func(ctx context.Context) ([]string, error) {
			return p.analyst.DetectAnomalies(ctx, prof)
		})
		return nil
	})
	g.Go(func() error {
		explanation = settle(ctx, model.ComponentExplanation, func(ctx context.Context) (string, error) {
			return p.analyst.Explain(ctx, prof, score)
		})
		return nil
	})
	g.Go(func() error {
		advice = settle(ctx, model.ComponentAdvice, func(ctx context.Context) (string, error) {
			return p.analyst.Advise(ctx, prof, score)
		})
		return nil
	})
	_ = g.Wait()

	var (
		res      model.AnalysisResult
		degraded []string
	)

	if explanation.Err != nil {
		logDegraded(log, model.ComponentExplanation, explanation.Err)
		res.Explanation = FallbackExplanation
		degraded = append(degraded, model.ComponentExplanation)
	} else {
		res.Explanation = explanation.Value
	}

	if advice.Err != nil {
		logDegraded(log, model.ComponentAdvice, advice.Err)
		res.Advice = FallbackAdvice
		degraded = append(degraded, model.ComponentAdvice)
	} else {
		res.Advice = advice.Value
	}

	switch {
	case anomalies.Err != nil:
		logDegraded(log, model.ComponentAnomalies, anomalies.Err)
		res.Anomalies = []string{FallbackAnomaly}
		degraded = append(degraded, model.ComponentAnomalies)
	case anomalies.Value == nil:
		res.Anomalies = []string{}
	default:
		res.Anomalies = anomalies.Value
	}

	return res, degraded
}
