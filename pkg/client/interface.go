package client

import (
	"context"

	"github.com/menta2k/plant-doctor/pkg/types"
)

// Classifier sends an image to a hosted model and returns label probabilities.
type Classifier interface {
	Classify(ctx context.Context, img *types.ImageInput) ([]types.Prediction, error)
	Model() string
}

// TextGenerator sends a prompt to a hosted LLM and returns the generated text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}
