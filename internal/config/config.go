package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/plant-doctor/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Image      ImageConfig      `yaml:"image"`
	Classifier ClassifierConfig `yaml:"classifier"`
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds configuration for the web front end
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowOrigins   []string      `yaml:"allow_origins"`
}

// ImageConfig holds configuration for image intake
type ImageConfig struct {
	MaxDimension int     `yaml:"max_dimension"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
	MinDimension int     `yaml:"min_dimension"`
	FocusRatio   float64 `yaml:"focus_ratio"` // 0 keeps the full frame
}

// ClassifierConfig selects the hosted disease classifier
type ClassifierConfig struct {
	Backend  string        `yaml:"backend"` // huggingface, ollama, llamacpp
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	TopK     int           `yaml:"top_k"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig selects the remedy generator
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // groq, openai, gemini, ollama
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig holds configuration for the classification cache
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// LoggingConfig holds configuration for the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

const (
	BackendHuggingFace = "huggingface"
	BackendOllama      = "ollama"
	BackendLlamaCpp    = "llamacpp"

	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "0.0.0.0:7860",
			MaxUploadBytes: 10 << 20,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * time.Minute,
			AllowOrigins:   []string{"*"},
		},
		Image: ImageConfig{
			MaxDimension: 1024,
			JPEGQuality:  90,
			MinDimension: 32,
		},
		// empty model and base URL select the backend's own defaults
		Classifier: ClassifierConfig{
			Backend: BackendHuggingFace,
			TopK:    3,
			Timeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     2 * time.Minute,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file at path (if it exists) on top of the
// defaults, then applies .env and environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := LoadFromFile(path)
			if err != nil {
				return nil, err
			}
			cfg = fileCfg
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// may contain API keys
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from environment variables
func (c *Config) ApplyEnv() {
	setString(&c.Server.Addr, "PLANT_DOCTOR_ADDR")
	setString(&c.Classifier.Backend, "CLASSIFIER_BACKEND")
	setString(&c.Classifier.Model, "CLASSIFIER_MODEL")
	setString(&c.Classifier.BaseURL, "CLASSIFIER_BASE_URL")
	setString(&c.Classifier.APIToken, "HUGGINGFACEHUB_API_TOKEN")
	setString(&c.Classifier.APIToken, "HF_API_TOKEN")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(c.APIKeyEnv())
	}
}

// APIKeyEnv names the environment variable holding the key for the LLM provider
func (c *Config) APIKeyEnv() string {
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOllama:
		return ""
	default:
		return "GROQ_API_KEY"
	}
}

// HasLLMCredentials reports whether remedy generation can be attempted
func (c *Config) HasLLMCredentials() bool {
	return strings.EqualFold(c.LLM.Provider, ProviderOllama) || c.LLM.APIKey != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}

	if c.Image.MaxDimension < 0 {
		return fmt.Errorf("image.max_dimension cannot be negative")
	}

	if c.Image.FocusRatio < 0 || c.Image.FocusRatio >= 1 {
		return fmt.Errorf("image.focus_ratio must be in [0, 1)")
	}

	switch strings.ToLower(c.Classifier.Backend) {
	case BackendHuggingFace, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("classifier.backend must be one of huggingface, ollama, llamacpp; got %q", c.Classifier.Backend)
	}

	if c.Classifier.TopK < 1 || c.Classifier.TopK > 20 {
		return fmt.Errorf("classifier.top_k must be between 1 and 20")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderGroq, ProviderOpenAI, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("llm.provider must be one of groq, openai, gemini, ollama; got %q", c.LLM.Provider)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size cannot be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "plant-doctor", "config.yaml")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
