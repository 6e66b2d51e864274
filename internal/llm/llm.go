// Package llm wraps the Gemini text-generation API
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"axial/internal/logger"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model
	DefaultModel = "gemini-flash-lite-latest"

	// DefaultTimeout bounds a single generation request
	DefaultTimeout = 30 * time.Second
)

// ResponseCache stores generated responses keyed by prompt
type ResponseCache interface {
	GetResponse(key string, maxAge time.Duration) (string, bool, error)
	PutResponse(key, model, response string) error
}

// KeyFunc derives a cache key from model, response mode and prompt
type KeyFunc func(model, mode, prompt string) string

// Config configures a Client
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client represents a client for interacting with Gemini
type Client struct {
	apiKey    string
	modelName string
	timeout   time.Duration
	gClient   *genai.Client

	cache    ResponseCache
	cacheKey KeyFunc
	cacheTTL time.Duration

	log *slog.Logger
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	Model          string        // Model to use (optional, defaults to client's model)
	ResponseSchema *genai.Schema // Optional schema forcing JSON output
	SystemPrompt   string        // Optional system instruction
}

// NewClient creates a new Gemini client
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or ai.gemini.api_key in the config file")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	gClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:    cfg.APIKey,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
		gClient:   gClient,
		log:       logger.Get().With("component", "llm"),
	}, nil
}

// WithCache enables response caching; entries older than ttl are regenerated
func (c *Client) WithCache(cache ResponseCache, key KeyFunc, ttl time.Duration) *Client {
	c.cache = cache
	c.cacheKey = key
	c.cacheTTL = ttl
	return c
}

// GetModelName returns the model name used by this client
func (c *Client) GetModelName() string {
	return c.modelName
}

// GenerateText generates text using the LLM with specified options
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}

	key := c.lookupKey(modelName, prompt, options)
	if key != "" {
		if cached, ok, err := c.cache.GetResponse(key, c.cacheTTL); err != nil {
			c.log.Warn("Response cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, buildConfig(options))
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from LLM")
	}

	if key != "" {
		if err := c.cache.PutResponse(key, modelName, text); err != nil {
			c.log.Warn("Response cache write failed", "error", err)
		}
	}
	return text, nil
}

func (c *Client) lookupKey(model, prompt string, options TextGenerationOptions) string {
	if c.cache == nil || c.cacheKey == nil {
		return ""
	}
	mode := "text"
	if options.ResponseSchema != nil {
		mode = "json"
	}
	if options.SystemPrompt != "" {
		prompt = options.SystemPrompt + "\n\n" + prompt
	}
	return c.cacheKey(model, mode, prompt)
}

// buildConfig converts options into a request config, or nil when none are set
func buildConfig(options TextGenerationOptions) *genai.GenerateContentConfig {
	if options.MaxTokens <= 0 && options.Temperature <= 0 && options.ResponseSchema == nil && options.SystemPrompt == "" {
		return nil
	}

	config := &genai.GenerateContentConfig{}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = options.MaxTokens
	}
	if options.Temperature > 0 {
		temp := options.Temperature
		config.Temperature = &temp
	}
	if options.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = options.ResponseSchema
	}
	if options.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: options.SystemPrompt}}}
	}
	return config
}
