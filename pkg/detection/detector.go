package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/menta2k/plant-doctor/pkg/client"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// DefaultTopK is how many ranked predictions are kept for display
const DefaultTopK = 3

// Detector handles plant disease detection using a hosted classifier
type Detector struct {
	client client.Classifier
	topK   int
}

// NewDetector creates a new detector with a classifier client
func NewDetector(client client.Classifier, topK int) *Detector {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Detector{client: client, topK: topK}
}

// Model returns the classifier model ID, or "" when no classifier is configured
func (d *Detector) Model() string {
	if d.client == nil {
		return ""
	}
	return d.client.Model()
}

// Detect classifies an image and returns the top ranked predictions
func (d *Detector) Detect(ctx context.Context, img *types.ImageInput) (*types.Detection, error) {
	if d.client == nil {
		return nil, types.ErrClassifierUnavailable
	}

	preds, err := d.client.Classify(ctx, img)
	if err != nil {
		return nil, err
	}

	preds = normalizePredictions(preds, d.topK)
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w (model %s)", types.ErrNoPredictions, d.client.Model())
	}

	return &types.Detection{
		Predictions: preds,
		Primary:     preds[0],
		Model:       d.client.Model(),
	}, nil
}

// normalizePredictions drops empty labels, clamps scores to [0,1], orders
// by descending score and keeps at most topK entries
func normalizePredictions(preds []types.Prediction, topK int) []types.Prediction {
	out := make([]types.Prediction, 0, len(preds))
	for _, p := range preds {
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			continue
		}
		p.Score = clamp(p.Score, 0, 1)
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
