package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/plant-doctor/pkg/detection"
	"github.com/menta2k/plant-doctor/pkg/processing"
	"github.com/menta2k/plant-doctor/pkg/remedy"
	"github.com/menta2k/plant-doctor/pkg/report"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// Analyzer runs the full pipeline: intake, classification, remedy generation
// and Markdown rendering of both result panes
type Analyzer struct {
	processor *processing.Processor
	detector  *detection.Detector
	advisor   *remedy.Advisor
	logger    *zap.Logger
}

// New creates an Analyzer from its stages. Any nil stage is replaced by a
// default one that reports the stage as unavailable.
func New(processor *processing.Processor, detector *detection.Detector, advisor *remedy.Advisor, logger *zap.Logger) *Analyzer {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if detector == nil {
		detector = detection.NewDetector(nil, detection.DefaultTopK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if advisor == nil {
		advisor = remedy.NewAdvisor(nil, logger)
	}
	return &Analyzer{
		processor: processor,
		detector:  detector,
		advisor:   advisor,
		logger:    logger,
	}
}

// Processor returns the image intake stage
func (a *Analyzer) Processor() *processing.Processor {
	return a.processor
}

// ClassifierModel returns the configured classifier model ID
func (a *Analyzer) ClassifierModel() string {
	return a.detector.Model()
}

// LLMModel returns the configured LLM model ID, "" when remedies are disabled
func (a *Analyzer) LLMModel() string {
	return a.advisor.Model()
}

// Analyze processes one image and always returns a displayable report.
//
// A non-nil error means no diagnosis was made; the report then carries the
// user-facing message in PredictionsMarkdown and empty remedies. A failure
// to generate remedies is not an error: the diagnosis is still shown and the
// remedies pane explains what went wrong.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*types.Report, error) {
	start := time.Now()
	rep := &types.Report{
		ClassifierModel: a.detector.Model(),
		LLMModel:        a.advisor.Model(),
	}

	img, err := a.processor.Prepare(data)
	if err != nil {
		return a.fail(rep, start, "image intake failed", err)
	}
	a.logger.Debug("image prepared",
		zap.String("digest", img.Digest),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("bytes", len(img.Data)))

	det, err := a.detector.Detect(ctx, img)
	if err != nil {
		return a.fail(rep, start, "classification failed", err)
	}
	rep.Detection = det
	rep.PredictionsMarkdown = report.PredictionsMarkdown(det)

	advice, err := a.advisor.Remedies(ctx, det)
	if err != nil {
		rep.RemedyError = err.Error()
		advice = report.RemedyErrorMessage(err)
	}
	rep.RemediesMarkdown = report.RemediesMarkdown(det.Primary.Label, advice)
	rep.Latency = time.Since(start)

	a.logger.Info("analysis complete",
		zap.String("digest", img.Digest),
		zap.String("disease", det.Primary.Label),
		zap.Float64("confidence", det.Confidence()),
		zap.Bool("remedies", rep.RemedyError == ""),
		zap.Duration("latency", rep.Latency))

	return rep, nil
}

func (a *Analyzer) fail(rep *types.Report, start time.Time, msg string, err error) (*types.Report, error) {
	rep.PredictionsMarkdown = report.ErrorMarkdown(err)
	rep.RemediesMarkdown = ""
	rep.Latency = time.Since(start)
	a.logger.Warn(msg, zap.Error(err), zap.Duration("latency", rep.Latency))
	return rep, err
}
