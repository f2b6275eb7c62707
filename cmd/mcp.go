package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the prediction tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPredictor(ctx, cfg, "mcp")
		if err != nil {
			return err
		}

		zap.L().Info("starting mcp server", zap.String("mode", env.Predictor.Mode()))
		if err := mcpserver.New(env.Predictor, version).Run(ctx); err != nil && ctx.Err() == nil {
			return eris.Wrap(err, "mcp server")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
