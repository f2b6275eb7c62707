package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-predictor/internal/config"
	"github.com/sells-group/credit-predictor/internal/model"
	"github.com/sells-group/credit-predictor/internal/scorer"
)

var (
	scoreIncome  string
	scoreDebts   string
	scoreHistory string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the deterministic score offline",
	Long:  "Validates the profile and prints the score with its factor breakdown. No AI backend is contacted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}
		res, err := scoreProfile(cfg.Scorer, model.RawProfile{
			Income:         model.NumericInput(scoreIncome),
			Debts:          model.NumericInput(scoreDebts),
			PaymentHistory: scoreHistory,
		})
		if err != nil {
			return reportValidation(cmd, err)
		}
		return printJSON(cmd, res)
	},
}

func scoreProfile(sc config.ScorerConfig, raw model.RawProfile) (model.ScoreResult, error) {
	s, err := scorer.New(sc)
	if err != nil {
		return model.ScoreResult{}, err
	}
	p, err := model.ParseProfile(raw)
	if err != nil {
		return model.ScoreResult{}, err
	}
	b := s.Breakdown(p)
	return model.ScoreResult{Score: b.Score, Breakdown: b}, nil
}

func init() {
	addProfileFlags(scoreCmd, &scoreIncome, &scoreDebts, &scoreHistory)
	rootCmd.AddCommand(scoreCmd)
}
