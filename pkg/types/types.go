package types

import "time"

// Prediction is a single (label, score) pair returned by a classifier.
// Score is a probability in the [0,1] range.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Percent returns the score as a percentage
func (p Prediction) Percent() float64 {
	return p.Score * 100
}

// ImageInput is a normalized image ready to be sent to a classifier
type ImageInput struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	// Digest is the hex SHA-256 of Data
	Digest string `json:"digest"`
}

// Detection contains the ranked classifier output for one image
type Detection struct {
	Predictions []Prediction `json:"predictions"`
	Primary     Prediction   `json:"primary"`
	Model       string       `json:"model"`
}

// Confidence returns the primary diagnosis confidence as a percentage
func (d *Detection) Confidence() float64 {
	return d.Primary.Percent()
}

// Report is what the front ends display for one analysis
type Report struct {
	Detection           *Detection    `json:"detection,omitempty"`
	PredictionsMarkdown string        `json:"predictions_markdown"`
	RemediesMarkdown    string        `json:"remedies_markdown"`
	RemedyError         string        `json:"remedy_error,omitempty"`
	ClassifierModel     string        `json:"classifier_model"`
	LLMModel            string        `json:"llm_model,omitempty"`
	Latency             time.Duration `json:"-"`
}

// ProcessingOptions contains options for image intake
type ProcessingOptions struct {
	MaxDimension int
	JPEGQuality  int
	MinDimension int
	// FocusRatio crops to the leaf before encoding; 0 disables
	FocusRatio float64
}
