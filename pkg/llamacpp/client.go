package llamacpp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/menta2k/plant-doctor/pkg/detection"
	"github.com/menta2k/plant-doctor/pkg/types"
)

const (
	DefaultServerURL = "http://localhost:8080"
	DefaultModel     = "llava"
)

// Classifier uses a vision model behind an OpenAI-compatible server
// (llama.cpp server, vLLM, ...) as the disease classifier
type Classifier struct {
	client *openai.Client
	model  string
}

// NewClassifier creates a classifier for serverURL. The /v1 suffix is added
// when missing. apiKey may be empty for local servers.
func NewClassifier(serverURL, model, apiKey string, timeout time.Duration) (*Classifier, error) {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid server URL: %q", serverURL)
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	baseURL := strings.TrimSuffix(serverURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Classifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (c *Classifier) Model() string {
	return c.model
}

// Classify sends the image as a data URL together with detection.VisionPrompt
func (c *Classifier) Classify(ctx context.Context, img *types.ImageInput) ([]types.Prediction, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, types.ErrNoImage
	}

	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: detection.VisionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: server returned status %d: %s", types.ErrClassification, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrClassification, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", types.ErrClassification)
	}

	text := responseText(resp.Choices[0].Message)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty response from server", types.ErrClassification)
	}
	return detection.ParseModelPredictions(text)
}

// responseText handles both string and array content
func responseText(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			return part.Text
		}
	}
	return ""
}
