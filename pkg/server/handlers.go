package server

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/plant-doctor/internal/utils"
	"github.com/menta2k/plant-doctor/pkg/processing"
	"github.com/menta2k/plant-doctor/pkg/report"
	"github.com/menta2k/plant-doctor/pkg/types"
)

type pageData struct {
	Predictions     template.HTML
	Remedies        template.HTML
	ClassifierModel string
	LLMModel        string
	Version         string
}

type diagnoseResponse struct {
	RequestID           string             `json:"request_id"`
	Predictions         []types.Prediction `json:"predictions"`
	Diagnosis           types.Prediction   `json:"diagnosis"`
	Confidence          float64            `json:"confidence"`
	PredictionsMarkdown string             `json:"predictions_markdown"`
	RemediesMarkdown    string             `json:"remedies_markdown"`
	RemedyError         string             `json:"remedy_error,omitempty"`
	ClassifierModel     string             `json:"classifier_model"`
	LLMModel            string             `json:"llm_model,omitempty"`
	LatencyMS           int64              `json:"latency_ms"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page(report.PlaceholderPredictions, ""))
}

func (s *Server) handleAnalyzeForm(c *gin.Context) {
	data, err := readImage(c)
	if err != nil {
		c.HTML(http.StatusOK, "index.html", s.page(report.ErrorMarkdown(err), ""))
		return
	}

	rep, err := s.analyzer.Analyze(c.Request.Context(), data)
	if err != nil {
		_ = c.Error(err)
		if rep == nil {
			rep = &types.Report{PredictionsMarkdown: report.ErrorMarkdown(err)}
		}
	}
	c.HTML(http.StatusOK, "index.html", s.page(rep.PredictionsMarkdown, rep.RemediesMarkdown))
}

func (s *Server) handleDiagnose(c *gin.Context) {
	reqID := c.GetString(requestIDKey)

	data, err := readImage(c)
	if err != nil {
		s.abortJSON(c, statusFor(err), err)
		return
	}

	rep, err := s.analyzer.Analyze(c.Request.Context(), data)
	if err != nil {
		s.abortJSON(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, diagnoseResponse{
		RequestID:           reqID,
		Predictions:         rep.Detection.Predictions,
		Diagnosis:           rep.Detection.Primary,
		Confidence:          rep.Detection.Confidence(),
		PredictionsMarkdown: rep.PredictionsMarkdown,
		RemediesMarkdown:    rep.RemediesMarkdown,
		RemedyError:         rep.RemedyError,
		ClassifierModel:     rep.ClassifierModel,
		LLMModel:            rep.LLMModel,
		LatencyMS:           rep.Latency.Milliseconds(),
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	llm := s.analyzer.LLMModel()
	c.JSON(http.StatusOK, gin.H{
		"version":          s.opts.Version,
		"classifier_model": s.analyzer.ClassifierModel(),
		"llm_model":        llm,
		"remedies_enabled": llm != "",
		"max_upload_bytes": s.opts.MaxUploadBytes,
	})
}

func (s *Server) abortJSON(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString(requestIDKey),
	})
}

func (s *Server) page(predictions, remedies string) pageData {
	return pageData{
		Predictions:     s.toHTML(predictions),
		Remedies:        s.toHTML(remedies),
		ClassifierModel: s.analyzer.ClassifierModel(),
		LLMModel:        s.analyzer.LLMModel(),
		Version:         s.opts.Version,
	}
}

// toHTML renders Markdown for the page. goldmark output is trusted since
// raw HTML in the source is not passed through.
func (s *Server) toHTML(md string) template.HTML {
	if md == "" {
		return ""
	}
	out, err := s.renderer.HTML(md)
	if err != nil {
		s.logger.Warn("markdown render failed", zap.Error(err))
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(out)
}

// readImage extracts the image bytes from a raw image/* body, a multipart
// "image" file or a "webcam" data URL, in that order
func readImage(c *gin.Context) ([]byte, error) {
	if ct := c.ContentType(); strings.HasPrefix(ct, "image/") {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, bodyError(err)
		}
		if len(data) == 0 {
			return nil, types.ErrNoImage
		}
		return data, nil
	}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidImage, err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidImage, err)
		}
		if len(data) > 0 {
			return data, nil
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, bodyError(err)
	}

	if webcam := c.PostForm("webcam"); webcam != "" {
		return processing.DecodeDataURL(webcam)
	}
	return nil, types.ErrNoImage
}

// errUploadTooLarge marks a body rejected by the size limit
var errUploadTooLarge = errors.New("upload too large")

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: %w (limit %s)", types.ErrInvalidImage, errUploadTooLarge, utils.FormatFileSize(maxErr.Limit))
	}
	return fmt.Errorf("%w: %v", types.ErrInvalidImage, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrNoImage),
		errors.Is(err, types.ErrInvalidImage),
		errors.Is(err, types.ErrImageTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
