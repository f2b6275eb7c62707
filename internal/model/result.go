package model

// AnalysisResult is the AI-generated narrative for one profile.
type AnalysisResult struct {
	Explanation string   `json:"explanation"`
	Advice      string   `json:"advice"`
	Anomalies   []string `json:"anomalies"`
}

// ScoreBreakdown shows how each factor contributed to the score.
type ScoreBreakdown struct {
	Base          float64 `json:"base"`
	PaymentPoints float64 `json:"payment_points"`
	DTI           float64 `json:"dti"`
	DTIPoints     float64 `json:"dti_points"`
	IncomePoints  float64 `json:"income_points"`
	Raw           float64 `json:"raw"`
	Score         int     `json:"score"`
}

// Analysis fields that can individually fall back to static text.
const (
	ComponentExplanation = "explanation"
	ComponentAdvice      = "advice"
	ComponentAnomalies   = "anomalies"
)

// PredictionResult is the unified, request-scoped output of predict.
type PredictionResult struct {
	RequestID   string         `json:"request_id"`
	Score       int            `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Explanation string         `json:"explanation"`
	Advice      string         `json:"advice"`
	Anomalies   []string       `json:"anomalies"`
	Mode        string         `json:"mode"`

	// Degraded is set when any analysis field holds fallback text.
	Degraded       bool     `json:"degraded"`
	DegradedFields []string `json:"degraded_fields,omitempty"`
}

// ScoreResult is the offline, deterministic-only output.
type ScoreResult struct {
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
