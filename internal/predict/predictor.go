// Package predict orchestrates validation, local scoring and AI analysis
// into a single PredictionResult, degrading to fallback text when the
// analysis backend fails.
package predict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/analysis"
	"github.com/sells-group/credit-predictor/internal/model"
	"github.com/sells-group/credit-predictor/internal/scorer"
)

// Analysis modes.
const (
	ModeCombined = "combined"
	ModeFanout   = "fanout"
)

// Fallback text shown when analysis is unavailable.
const (
	FallbackExplanation = "Could not generate an explanation."
	FallbackAdvice      = "Could not generate financial advice."
	FallbackAnomaly     = "Failed to validate data."

	UnexpectedExplanation = "Could not generate an explanation due to a server error."
	UnexpectedAdvice      = "Could not generate financial advice due to a server error."
	UnexpectedAnomaly     = "An unexpected error occurred."
)

const defaultAITimeout = 20 * time.Second

// Analyzer produces the AI narrative for a scored profile.
type Analyzer interface {
	Analyze(ctx context.Context, p model.Profile, score int) (model.AnalysisResult, error)
	Explain(ctx context.Context, p model.Profile, score int) (string, error)
	Advise(ctx context.Context, p model.Profile, score int) (string, error)
	DetectAnomalies(ctx context.Context, p model.Profile) ([]string, error)
}

// Options configures a Predictor.
type Options struct {
	Scorer    *scorer.Scorer
	Analyst   Analyzer
	Mode      string
	AITimeout time.Duration
}

// Predictor runs the predict flow. It holds no per-request state and is
// safe for concurrent use.
type Predictor struct {
	scorer    *scorer.Scorer
	analyst   Analyzer
	mode      string
	aiTimeout time.Duration
	newID     func() string
}

// New validates opts and returns a Predictor.
func New(opts Options) (*Predictor, error) {
	if opts.Analyst == nil {
		return nil, eris.New("predict: analyst is required")
	}
	if opts.Scorer == nil {
		opts.Scorer = scorer.Default()
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeCombined
	case ModeCombined, ModeFanout:
	default:
		return nil, eris.Errorf("predict: unknown mode %q", opts.Mode)
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = defaultAITimeout
	}
	return &Predictor{
		scorer:    opts.Scorer,
		analyst:   opts.Analyst,
		mode:      opts.Mode,
		aiTimeout: opts.AITimeout,
		newID:     uuid.NewString,
	}, nil
}

// Mode returns the configured analysis mode.
func (p *Predictor) Mode() string { return p.mode }

// Predict validates raw and runs the flow. The only error it returns is
// model.ValidationErrors; backend failures produce a degraded result.
func (p *Predictor) Predict(ctx context.Context, raw model.RawProfile) (model.PredictionResult, error) {
	prof, err := model.ParseProfile(raw)
	if err != nil {
		return model.PredictionResult{}, err
	}
	return p.PredictProfile(ctx, prof), nil
}

// PredictProfile runs the flow for an already validated profile.
func (p *Predictor) PredictProfile(ctx context.Context, prof model.Profile) (res model.PredictionResult) {
	id := p.newID()
	log := zap.L().With(zap.String("request_id", id), zap.String("mode", p.mode))

	defer func() {
		if r := recover(); r != nil {
			log.Error("predict: unexpected failure", zap.Any("panic", r), zap.Stack("stack"))
			res = unexpectedResult(id, p.mode, p.scorer.MinScore())
		}
	}()

	breakdown := p.scorer.Breakdown(prof)
	res = model.PredictionResult{
		RequestID: id,
		Score:     breakdown.Score,
		Breakdown: breakdown,
		Mode:      p.mode,
	}

	var (
		ai       model.AnalysisResult
		degraded []string
	)
	if p.mode == ModeFanout {
		ai, degraded = p.analyzeFanout(ctx, log, prof, breakdown.Score)
	} else {
		ai, degraded = p.analyzeCombined(ctx, log, prof, breakdown.Score)
	}

	res.Explanation = ai.Explanation
	res.Advice = ai.Advice
	res.Anomalies = ai.Anomalies
	res.Degraded = len(degraded) > 0
	res.DegradedFields = degraded

	log.Info("predict: complete",
		zap.Int("score", res.Score),
		zap.Bool("degraded", res.Degraded),
		zap.Strings("degraded_fields", degraded),
	)
	return res
}

// Score validates raw and returns the deterministic score only.
func (p *Predictor) Score(_ context.Context, raw model.RawProfile) (model.ScoreResult, error) {
	prof, err := model.ParseProfile(raw)
	if err != nil {
		return model.ScoreResult{}, err
	}
	b := p.scorer.Breakdown(prof)
	return model.ScoreResult{Score: b.Score, Breakdown: b}, nil
}

func (p *Predictor) analyzeCombined(ctx context.Context, log *zap.Logger, prof model.Profile, score int) (model.AnalysisResult, []string) {
	ctx, cancel := context.WithTimeout(ctx, p.aiTimeout)
	defer cancel()

	res, err := p.analyst.Analyze(ctx, prof, score)
	if err != nil {
		logDegraded(log, ModeCombined, err)
		return model.AnalysisResult{
			Explanation: FallbackExplanation,
			Advice:      FallbackAdvice,
			Anomalies:   []string{FallbackAnomaly},
		}, []string{model.ComponentExplanation, model.ComponentAdvice, model.ComponentAnomalies}
	}
	if res.Anomalies == nil {
		res.Anomalies = []string{}
	}
	return res, nil
}

func unexpectedResult(id, mode string, minScore int) model.PredictionResult {
	return model.PredictionResult{
		RequestID:      id,
		Score:          minScore,
		Explanation:    UnexpectedExplanation,
		Advice:         UnexpectedAdvice,
		Anomalies:      []string{UnexpectedAnomaly},
		Mode:           mode,
		Degraded:       true,
		DegradedFields: []string{model.ComponentExplanation, model.ComponentAdvice, model.ComponentAnomalies},
	}
}

func logDegraded(log *zap.Logger, op string, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if be, ok := analysis.AsBackendError(err); ok {
		fields = append(fields, zap.String("kind", string(be.Kind)))
	}
	log.Warn("predict: analysis unavailable, using fallback", fields...)
}
