package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/plant-doctor/pkg/types"
)

const (
	// PlaceholderPredictions is shown before anything was analyzed
	PlaceholderPredictions = "*Upload an image to see predictions...*"

	NoImageMessage            = "⚠️ Please upload or capture an image first."
	ClassifierMissingMessage  = "Model not loaded"
	GeneratorMissingMessage   = "⚠️ Remedy generator not initialized. Please set your GROQ_API_KEY environment variable."
	generationFailedTemplate  = "⚠️ Error generating remedies: %s\n\nPlease check your LLM API key."
	predictionFailedTemplate  = "Error during prediction: %s"
	invalidImageMessageFormat = "⚠️ Could not read the image: %s"
)

// PredictionLines renders the numbered "N. label: xx.xx%" list
func PredictionLines(preds []types.Prediction) string {
	lines := make([]string, len(preds))
	for i, p := range preds {
		lines[i] = fmt.Sprintf("%d. %s: %.2f%%", i+1, p.Label, p.Percent())
	}
	return strings.Join(lines, "\n")
}

// PredictionsMarkdown renders the detection results pane
func PredictionsMarkdown(det *types.Detection) string {
	var sb strings.Builder
	sb.WriteString("\n# 🔍 Disease Detection Results\n\n---\n\n")
	sb.WriteString("### 📊 Top Predictions:\n\n")
	sb.WriteString(PredictionLines(det.Predictions))
	sb.WriteString("\n\n---\n\n### 🎯 Primary Diagnosis\n\n")
	// two trailing spaces force a Markdown line break
	fmt.Fprintf(&sb, "**Disease:** %s  \n", det.Primary.Label)
	fmt.Fprintf(&sb, "**Confidence Level:** %.2f%%\n\n---\n", det.Confidence())
	return sb.String()
}

// RemediesMarkdown renders the treatment pane around the generated advice
func RemediesMarkdown(diseaseName, advice string) string {
	return fmt.Sprintf("\n# 🌿 Treatment & Remedies\n\n## 📋 Detected Disease: **%s**\n\n---\n\n", diseaseName) + advice
}

// RemedyErrorMessage is the text shown in place of advice when generation failed
func RemedyErrorMessage(err error) string {
	if errors.Is(err, types.ErrGeneratorUnavailable) {
		return GeneratorMissingMessage
	}
	return fmt.Sprintf(generationFailedTemplate, err.Error())
}

// ErrorMarkdown is the text shown in the predictions pane when analysis
// stopped before any remedies could be generated
func ErrorMarkdown(err error) string {
	switch {
	case errors.Is(err, types.ErrNoImage):
		return NoImageMessage
	case errors.Is(err, types.ErrClassifierUnavailable):
		return ClassifierMissingMessage
	case errors.Is(err, types.ErrInvalidImage), errors.Is(err, types.ErrImageTooSmall):
		return fmt.Sprintf(invalidImageMessageFormat, err.Error())
	default:
		return fmt.Sprintf(predictionFailedTemplate, err.Error())
	}
}
