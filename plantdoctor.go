// Package plantdoctor detects plant diseases from a photo and suggests
// treatments.
//
// An image is normalized, sent to a hosted image classifier that returns
// ranked (label, score) pairs, and the top label is turned into a prompt for
// an LLM that writes treatment advice. Both results are rendered as Markdown
// for the web form, the JSON API and the terminal.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		plantdoctor "github.com/menta2k/plant-doctor"
//	)
//
//	func main() {
//		cfg := plantdoctor.DefaultConfig()
//		cfg.ApplyEnv() // GROQ_API_KEY, HF_API_TOKEN, ...
//
//		pd, err := plantdoctor.New(context.Background(), cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		report, err := pd.AnalyzeSource(context.Background(), "leaf.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(report.PredictionsMarkdown)
//		fmt.Println(report.RemediesMarkdown)
//	}
//
// The package consists of these components:
//
// 1. Processing (pkg/processing): image intake, decoding and normalization
// 2. Detection (pkg/detection): ranking and caching of classifier output
// 3. Remedy (pkg/remedy): prompt composition and LLM advice
// 4. Report (pkg/report): Markdown layout and HTML/terminal rendering
// 5. Server (pkg/server): web form and JSON API
//
// Classifier backends are Hugging Face Inference (default), Ollama vision
// models and vision models behind an OpenAI-compatible server such as the
// llama.cpp server. LLM providers are Groq (default), any OpenAI-compatible
// endpoint, Google Gemini and Ollama.
package plantdoctor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/plant-doctor/internal/config"
	"github.com/menta2k/plant-doctor/pkg/analyzer"
	"github.com/menta2k/plant-doctor/pkg/client"
	"github.com/menta2k/plant-doctor/pkg/detection"
	"github.com/menta2k/plant-doctor/pkg/gemini"
	"github.com/menta2k/plant-doctor/pkg/groq"
	"github.com/menta2k/plant-doctor/pkg/huggingface"
	"github.com/menta2k/plant-doctor/pkg/llamacpp"
	"github.com/menta2k/plant-doctor/pkg/ollama"
	"github.com/menta2k/plant-doctor/pkg/processing"
	"github.com/menta2k/plant-doctor/pkg/remedy"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// Version of the plant doctor library
const Version = "1.0.0"

const (
	DefaultOpenAIModel           = "gpt-4o-mini"
	DefaultOllamaVisionModel     = "llava"
	DefaultOllamaGenerationModel = "llama3.2"
)

// Config is the application configuration
type Config = config.Config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return config.Default()
}

// PlantDoctor is the assembled analysis pipeline
type PlantDoctor struct {
	*analyzer.Analyzer
	cfg *Config
}

// New assembles the pipeline from cfg. A missing LLM key is not an error:
// diagnoses still work and the remedies pane explains what is missing.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*PlantDoctor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cls, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}

	gen, err := NewTextGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		logger.Warn("no LLM API key configured, remedy generation disabled",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("env", cfg.APIKeyEnv()))
	}

	processor := processing.NewProcessorWithOptions(types.ProcessingOptions{
		MaxDimension: cfg.Image.MaxDimension,
		JPEGQuality:  cfg.Image.JPEGQuality,
		MinDimension: cfg.Image.MinDimension,
		FocusRatio:   cfg.Image.FocusRatio,
	})
	detector := detection.NewDetector(cls, cfg.Classifier.TopK)
	advisor := remedy.NewAdvisor(gen, logger.Named("remedy"))

	logger.Info("pipeline ready",
		zap.String("classifier_backend", cfg.Classifier.Backend),
		zap.String("classifier_model", cls.Model()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", advisor.Model()),
		zap.Int("cache_size", cfg.Cache.Size))

	return &PlantDoctor{
		Analyzer: analyzer.New(processor, detector, advisor, logger.Named("analyzer")),
		cfg:      cfg,
	}, nil
}

// Config returns the configuration the pipeline was built from
func (pd *PlantDoctor) Config() *Config {
	return pd.cfg
}

// AnalyzeSource loads an image from a local path or an http(s) URL and
// analyzes it
func (pd *PlantDoctor) AnalyzeSource(ctx context.Context, source string) (*types.Report, error) {
	data, err := pd.Processor().LoadSmart(ctx, source)
	if err != nil {
		return nil, err
	}
	return pd.Analyze(ctx, data)
}

// NewClassifier builds the configured classifier backend wrapped in the
// result cache
func NewClassifier(cfg *Config) (client.Classifier, error) {
	cc := cfg.Classifier

	var cls client.Classifier
	switch strings.ToLower(cc.Backend) {
	case config.BackendHuggingFace:
		hf, err := huggingface.NewClient(cc.BaseURL, cc.Model, cc.APIToken, cc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Hugging Face client: %w", err)
		}
		cls = hf
	case config.BackendOllama:
		oc, err := ollama.NewClient(cc.BaseURL, cc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		model := cc.Model
		if model == "" {
			model = DefaultOllamaVisionModel
		}
		cls = ollama.NewClassifier(oc, model)
	case config.BackendLlamaCpp:
		lc, err := llamacpp.NewClassifier(cc.BaseURL, cc.Model, cc.APIToken, cc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		cls = lc
	default:
		return nil, fmt.Errorf("unknown classifier backend: %s", cc.Backend)
	}

	return detection.NewCachingClassifier(cls, cfg.Cache.Size, cfg.Cache.TTL), nil
}

// NewTextGenerator builds the configured LLM provider. It returns a nil
// generator and no error when the provider needs an API key and none is set.
func NewTextGenerator(ctx context.Context, cfg *Config) (client.TextGenerator, error) {
	lc := cfg.LLM
	if !cfg.HasLLMCredentials() {
		return nil, nil
	}

	switch strings.ToLower(lc.Provider) {
	case config.ProviderGroq, config.ProviderOpenAI:
		opts := groq.Options{
			APIKey:      lc.APIKey,
			BaseURL:     lc.BaseURL,
			Model:       lc.Model,
			Temperature: lc.Temperature,
			MaxTokens:   lc.MaxTokens,
			Timeout:     lc.Timeout,
		}
		if strings.EqualFold(lc.Provider, config.ProviderOpenAI) {
			if opts.BaseURL == "" {
				opts.BaseURL = "https://api.openai.com/v1"
			}
			if opts.Model == "" {
				opts.Model = DefaultOpenAIModel
			}
		}
		gen, err := groq.NewGenerator(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s generator: %w", lc.Provider, err)
		}
		return gen, nil
	case config.ProviderGemini:
		gen, err := gemini.NewGenerator(ctx, lc.APIKey, lc.Model, lc.BaseURL, lc.Temperature, lc.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini generator: %w", err)
		}
		return gen, nil
	case config.ProviderOllama:
		oc, err := ollama.NewClient(lc.BaseURL, lc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		model := lc.Model
		if model == "" {
			model = DefaultOllamaGenerationModel
		}
		return ollama.NewGenerator(oc, model, float64(lc.Temperature), lc.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", lc.Provider)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
