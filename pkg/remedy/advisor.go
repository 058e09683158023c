package remedy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/plant-doctor/pkg/client"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// Advisor turns a detection into treatment advice through an LLM
type Advisor struct {
	gen    client.TextGenerator
	logger *zap.Logger
}

// NewAdvisor creates an advisor. gen may be nil when no LLM is configured,
// in which case Remedies reports ErrGeneratorUnavailable.
func NewAdvisor(gen client.TextGenerator, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{gen: gen, logger: logger}
}

// Model returns the LLM model ID, or "" when none is configured
func (a *Advisor) Model() string {
	if a.gen == nil {
		return ""
	}
	return a.gen.Model()
}

// Remedies generates Markdown treatment advice for the primary diagnosis
func (a *Advisor) Remedies(ctx context.Context, det *types.Detection) (string, error) {
	if a.gen == nil {
		return "", types.ErrGeneratorUnavailable
	}
	if det == nil {
		return "", types.ErrNoPredictions
	}

	prompt, err := ComposePrompt(det.Primary.Label, det.Confidence())
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("remedy generation failed",
			zap.String("model", a.gen.Model()),
			zap.String("disease", det.Primary.Label),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", types.ErrGeneration, err)
	}

	a.logger.Debug("remedies generated",
		zap.String("model", a.gen.Model()),
		zap.Int("chars", len(text)),
		zap.Duration("latency", time.Since(start)))
	return text, nil
}
