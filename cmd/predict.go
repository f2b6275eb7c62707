package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-predictor/internal/model"
)

var (
	predictIncome  string
	predictDebts   string
	predictHistory string
	predictMode    string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a profile and print the AI analysis as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if predictMode != "" {
			cfg.Predict.Mode = predictMode
		}

		env, err := initPredictor(ctx, cfg, "predict")
		if err != nil {
			return err
		}

		res, err := env.Predictor.Predict(ctx, profileFromFlags())
		if err != nil {
			return reportValidation(cmd, err)
		}

		return printJSON(cmd, res)
	},
}

func profileFromFlags() model.RawProfile {
	return model.RawProfile{
		Income:         model.NumericInput(predictIncome),
		Debts:          model.NumericInput(predictDebts),
		PaymentHistory: predictHistory,
	}
}

// reportValidation prints field messages to stderr and returns a short error
// so the process exits non-zero.
func reportValidation(cmd *cobra.Command, err error) error {
	ve, ok := model.AsValidationErrors(err)
	if !ok {
		return err
	}
	for _, fe := range ve {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", fe.Field, fe.Message)
	}
	return eris.New("invalid profile")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addProfileFlags(cmd *cobra.Command, income, debts, history *string) {
	cmd.Flags().StringVar(income, "income", "", "annual income")
	cmd.Flags().StringVar(debts, "debts", "", "total debts")
	cmd.Flags().StringVar(history, "payment-history", "", "payment history: excellent, good, fair or poor")
}

func init() {
	addProfileFlags(predictCmd, &predictIncome, &predictDebts, &predictHistory)
	predictCmd.Flags().StringVar(&predictMode, "mode", "", "analysis mode: combined or fanout (default from config)")
	rootCmd.AddCommand(predictCmd)
}
