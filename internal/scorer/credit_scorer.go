package scorer

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/credit-predictor/internal/config"
	"github.com/sells-group/credit-predictor/internal/model"
)

// Scorer maps a validated profile to a credit score. It holds only the
// formula constants, so one instance is safe to share across requests.
type Scorer struct {
	base          decimal.Decimal
	min, max      int64
	paymentPoints map[model.PaymentHistory]decimal.Decimal
	dtiWeight     decimal.Decimal
	incomeWeight  decimal.Decimal
	incomeCap     decimal.Decimal
}

// New builds a Scorer from cfg after validating it.
func New(cfg config.ScorerConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Scorer{
		base: decimal.NewFromInt(int64(cfg.BaseScore)),
		min:  int64(cfg.MinScore),
		max:  int64(cfg.MaxScore),
		paymentPoints: map[model.PaymentHistory]decimal.Decimal{
			model.PaymentHistoryExcellent: decimal.NewFromFloat(cfg.ExcellentPoints),
			model.PaymentHistoryGood:      decimal.NewFromFloat(cfg.GoodPoints),
			model.PaymentHistoryFair:      decimal.NewFromFloat(cfg.FairPoints),
			model.PaymentHistoryPoor:      decimal.NewFromFloat(cfg.PoorPoints),
		},
		dtiWeight:    decimal.NewFromFloat(cfg.DTIWeight),
		incomeWeight: decimal.NewFromFloat(cfg.IncomeWeight),
		incomeCap:    decimal.NewFromFloat(cfg.IncomeCap),
	}, nil
}

// Default returns a Scorer using DefaultScorerConfig.
func Default() *Scorer {
	s, err := New(DefaultScorerConfig())
	if err != nil {
		panic(err) // defaults are validated by tests
	}
	return s
}

// MinScore is the lower clamp bound.
func (s *Scorer) MinScore() int { return int(s.min) }

// Score returns the clamped integer score for p.
func (s *Scorer) Score(p model.Profile) int {
	return s.Breakdown(p).Score
}

// Breakdown computes the score and each factor's contribution:
//
//	dti          = income > 0 ? min(debts/income, 1) : 1
//	raw          = base + payment + (1-dti)*dtiWeight + min(income/cap, 1)*incomeWeight
//	score        = clamp(round(raw), min, max)
func (s *Scorer) Breakdown(p model.Profile) model.ScoreBreakdown {
	one := decimal.NewFromInt(1)
	income, debts := p.Income(), p.Debts()

	// Unrecognized labels earn nothing.
	payment, ok := s.paymentPoints[p.PaymentHistory()]
	if !ok {
		payment = decimal.Zero
	}

	dti := one
	if income.IsPositive() {
		dti = decimal.Min(debts.Div(income), one)
	}
	dtiPoints := one.Sub(dti).Mul(s.dtiWeight)

	incomeRatio := decimal.Zero
	if income.IsPositive() {
		incomeRatio = decimal.Min(income.Div(s.incomeCap), one)
	}
	incomePoints := incomeRatio.Mul(s.incomeWeight)

	raw := s.base.Add(payment).Add(dtiPoints).Add(incomePoints)

	score := raw.Round(0).IntPart()
	if score < s.min {
		score = s.min
	}
	if score > s.max {
		score = s.max
	}

	return model.ScoreBreakdown{
		Base:          s.base.InexactFloat64(),
		PaymentPoints: payment.InexactFloat64(),
		DTI:           dti.InexactFloat64(),
		DTIPoints:     dtiPoints.InexactFloat64(),
		IncomePoints:  incomePoints.InexactFloat64(),
		Raw:           raw.InexactFloat64(),
		Score:         int(score),
	}
}
