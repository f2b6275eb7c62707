// Package mcpserver exposes credit prediction as MCP tools.
package mcpserver

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/model"
)

// Service is the prediction flow behind the tools.
type Service interface {
	Predict(ctx context.Context, raw model.RawProfile) (model.PredictionResult, error)
	Score(ctx context.Context, raw model.RawProfile) (model.ScoreResult, error)
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	svc       Service
}

// New creates the server and registers its tools.
func New(svc Service, version string) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "credit-predictor", Version: version}, nil),
		svc:       svc,
	}

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name: "predict_credit_score",
		Description: "Estimate a credit score (300-850) from annual income, total debts and payment history, " +
			"with an explanation, improvement advice and any anomalies in the data.",
	}, s.handlePredict)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_credit_profile",
		Description: "Compute the deterministic credit score and its factor breakdown without AI analysis.",
	}, s.handleScore)

	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		return eris.Wrap(err, "mcpserver: run")
	}
	return nil
}

type profileInput struct {
	Income         float64 `json:"income" jsonschema:"annual income in USD, must be greater than 0"`
	Debts          float64 `json:"debts" jsonschema:"total outstanding debts in USD, 0 or more"`
	PaymentHistory string  `json:"payment_history" jsonschema:"one of excellent, good, fair, poor"`
}

func (in profileInput) raw() model.RawProfile {
	return model.RawProfile{
		Income:         model.NumericInput(decimal.NewFromFloat(in.Income).String()),
		Debts:          model.NumericInput(decimal.NewFromFloat(in.Debts).String()),
		PaymentHistory: in.PaymentHistory,
	}
}

func (s *Server) handlePredict(ctx context.Context, _ *sdkmcp.CallToolRequest, in profileInput) (*sdkmcp.CallToolResult, model.PredictionResult, error) {
	res, err := s.svc.Predict(ctx, in.raw())
	if err != nil {
		return nil, model.PredictionResult{}, toolError(err)
	}
	zap.L().Info("mcpserver: predict",
		zap.String("request_id", res.RequestID),
		zap.Int("score", res.Score),
		zap.Bool("degraded", res.Degraded),
	)
	return nil, res, nil
}

func (s *Server) handleScore(ctx context.Context, _ *sdkmcp.CallToolRequest, in profileInput) (*sdkmcp.CallToolResult, model.ScoreResult, error) {
	res, err := s.svc.Score(ctx, in.raw())
	if err != nil {
		return nil, model.ScoreResult{}, toolError(err)
	}
	return nil, res, nil
}

// toolError keeps validation messages readable for the calling model.
func toolError(err error) error {
	if ve, ok := model.AsValidationErrors(err); ok {
		return eris.New(ve.Error())
	}
	zap.L().Error("mcpserver: tool failed", zap.Error(err))
	return eris.New("internal error")
}
