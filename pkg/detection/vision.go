package detection

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/plant-doctor/pkg/types"
)

// VisionPrompt asks a general vision-language model to act as a plant
// disease classifier. ParseModelPredictions reads its answer.
const VisionPrompt = `You are a plant pathology image classifier.

Look at the plant in this image and return the most likely diagnoses.

Return JSON only:
{
  "predictions": [
    {"label": "Tomato with Early Blight", "score": 0.0}
  ]
}

HARD RULES
- Labels name the plant and the disease, or "Healthy <plant>" when no disease is visible.
- Scores are probabilities in [0,1], sorted from most to least likely, and sum to at most 1.
- Return at most 5 predictions.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

type predictionList struct {
	Predictions []types.Prediction `json:"predictions"`
}

// ParseModelPredictions parses the JSON answer of a vision model prompted
// with VisionPrompt. Both {"predictions":[...]} and a bare array are accepted.
func ParseModelPredictions(raw string) ([]types.Prediction, error) {
	raw = sanitizeModelJSON(raw)

	if strings.HasPrefix(raw, "[") {
		var preds []types.Prediction
		if err := json.Unmarshal([]byte(raw), &preds); err != nil {
			return nil, fmt.Errorf("%w: invalid model JSON: %v", types.ErrClassification, err)
		}
		return preds, nil
	}

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("%w: model returned non-JSON response", types.ErrClassification)
	}

	var list predictionList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: invalid model JSON: %v", types.ErrClassification, err)
	}
	return list.Predictions, nil
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 && !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
