package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/plant-doctor/pkg/detection"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string, timeout time.Duration) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// Drop any path like /api/chat, the SDK appends its own
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient), timeout: timeout}, nil
}

func (c *Client) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	streamFalse := false
	req.Stream = &streamFalse

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return content.String(), nil
}

// Classifier uses an Ollama vision model as the disease classifier
type Classifier struct {
	client *Client
	model  string
}

func NewClassifier(c *Client, model string) *Classifier {
	return &Classifier{client: c, model: model}
}

func (c *Classifier) Model() string {
	return c.model
}

// Classify sends the image with detection.VisionPrompt and parses the JSON predictions
func (c *Classifier) Classify(ctx context.Context, img *types.ImageInput) ([]types.Prediction, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, types.ErrNoImage
	}

	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: detection.VisionPrompt,
				Images:  []api.ImageData{api.ImageData(img.Data)},
			},
		},
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0.1},
	}

	content, err := c.client.chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrClassification, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty response from ollama", types.ErrClassification)
	}

	return detection.ParseModelPredictions(content)
}

// Generator produces remedy text with an Ollama chat model
type Generator struct {
	client      *Client
	model       string
	temperature float64
	maxTokens   int
}

func NewGenerator(c *Client, model string, temperature float64, maxTokens int) *Generator {
	return &Generator{client: c, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	options := map[string]any{"temperature": g.temperature}
	if g.maxTokens > 0 {
		options["num_predict"] = g.maxTokens
	}

	content, err := g.client.chat(ctx, &api.ChatRequest{
		Model:    g.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Options:  options,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}
