package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/menta2k/plant-doctor/pkg/types"
)

const (
	DefaultBaseURL = "https://router.huggingface.co/hf-inference"
	DefaultModel   = "linkanjarad/mobilenet_v2_1.0_224-plant-disease-identification"
)

// Client classifies images with a model hosted on the Hugging Face inference API
type Client struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

// errorResponse is returned by the inference API for failed requests,
// e.g. while a cold model is still loading
type errorResponse struct {
	Error         any     `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

func NewClient(baseURL, model, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Model returns the hosted model ID
func (c *Client) Model() string {
	return c.model
}

// Classify posts the raw image bytes to the model endpoint and returns its label scores
func (c *Client) Classify(ctx context.Context, img *types.ImageInput) ([]types.Prediction, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, types.ErrNoImage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	contentType := img.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-wait-for-model", "true")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrClassification, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", types.ErrClassification, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", types.ErrClassification, describeError(resp.StatusCode, body))
	}

	return parsePredictions(body)
}

// parsePredictions accepts both the flat [{label,score}] shape and the
// batched [[{label,score}]] shape some endpoints return
func parsePredictions(body []byte) ([]types.Prediction, error) {
	var preds []types.Prediction
	if err := json.Unmarshal(body, &preds); err == nil {
		return preds, nil
	}

	var batched [][]types.Prediction
	if err := json.Unmarshal(body, &batched); err == nil {
		if len(batched) == 0 {
			return nil, nil
		}
		return batched[0], nil
	}

	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrClassification, apiErr.Error)
	}

	return nil, fmt.Errorf("%w: unexpected response: %s", types.ErrClassification, truncate(string(body), 200))
}

func describeError(status int, body []byte) string {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		msg := fmt.Sprintf("status %d: %v", status, apiErr.Error)
		if apiErr.EstimatedTime > 0 {
			msg += fmt.Sprintf(" (model loading, retry in ~%.0fs)", apiErr.EstimatedTime)
		}
		return msg
	}
	return fmt.Sprintf("status %d: %s", status, truncate(strings.TrimSpace(string(body)), 200))
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
