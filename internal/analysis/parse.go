package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-predictor/internal/model"
)

// answer is the union of every prompt's output fields. Pointers tell a
// missing field apart from an empty one.
type answer struct {
	Explanation *string   `json:"explanation"`
	Advice      *string   `json:"advice"`
	Anomalies   *[]string `json:"anomalies"`
}

// cleanJSON strips code fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func decodeAnswer(text string) (answer, error) {
	var a answer
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return a, eris.New("response is not a JSON object")
	}
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return a, eris.Wrap(err, "decode response")
	}
	return a, nil
}

func requireText(field string, v *string) (string, error) {
	if v == nil {
		return "", eris.Errorf("field %q missing", field)
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", eris.Errorf("field %q is empty", field)
	}
	return s, nil
}

// requireList returns a non-nil slice with blank entries dropped.
func requireList(field string, v *[]string) ([]string, error) {
	if v == nil {
		return nil, eris.Errorf("field %q missing or null", field)
	}
	out := make([]string, 0, len(*v))
	for _, s := range *v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseCombined(text string) (model.AnalysisResult, error) {
	a, err := decodeAnswer(text)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	explanation, err := requireText(model.ComponentExplanation, a.Explanation)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	advice, err := requireText(model.ComponentAdvice, a.Advice)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	anomalies, err := requireList(model.ComponentAnomalies, a.Anomalies)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	return model.AnalysisResult{Explanation: explanation, Advice: advice, Anomalies: anomalies}, nil
}

func parseText(field, text string) (string, error) {
	a, err := decodeAnswer(text)
	if err != nil {
		return "", err
	}
	switch field {
	case model.ComponentExplanation:
		return requireText(field, a.Explanation)
	case model.ComponentAdvice:
		return requireText(field, a.Advice)
	default:
		return "", eris.Errorf("no text field %q", field)
	}
}

func parseAnomalies(text string) ([]string, error) {
	a, err := decodeAnswer(text)
	if err != nil {
		return nil, err
	}
	return requireList(model.ComponentAnomalies, a.Anomalies)
}
