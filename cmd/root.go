package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/config"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "credit-predictor",
	Short: "Credit score prediction with AI analysis",
	Long:  "Validates a financial profile, computes a deterministic credit score, and asks a generative-AI backend to explain it, suggest improvements, and flag anomalies. Served over HTTP, MCP, or the command line.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
