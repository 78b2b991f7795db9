// Package ollama exposes an Ollama-served vision language model as a
// detection engine. The model is prompted for a strict JSON object list and
// the answer goes through the tolerant parser shared by all chat backends.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/processing"
)

// Config holds Ollama connection and model settings.
type Config struct {
	URL          string `json:"url"`
	Model        string `json:"model"`
	MaxImageSide int    `json:"max_image_side"`
}

// DefaultConfig returns settings for a local Ollama instance.
func DefaultConfig() Config {
	return Config{
		URL:          "http://localhost:11434",
		Model:        "minicpm-v",
		MaxImageSide: 1536,
	}
}

// Client exposes an Ollama vision model as a detection engine.
type Client struct {
	client    *api.Client
	config    Config
	processor *processing.Processor
}

// New creates an Ollama-backed engine.
func New(config Config) (*Client, error) {
	defaults := DefaultConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxImageSide <= 0 {
		config.MaxImageSide = defaults.MaxImageSide
	}

	// Parse the provided URL
	parsedURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Create client with the specified URL, ignoring environment
	client := api.NewClient(baseURL, http.DefaultClient)

	return &Client{
		client:    client,
		config:    config,
		processor: processing.NewProcessor(),
	}, nil
}

// Name identifies the backend in errors and logs.
func (c *Client) Name() string {
	return "ollama"
}

// Close releases nothing; the shared HTTP client stays usable.
func (c *Client) Close() error {
	return nil
}

// Detect asks the vision model to locate objects in the image.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]engine.Object, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	// Add timeout if context doesn't have one (longer for MiniCPM-V on CPU)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second) // 5 minutes for CPU processing
		defer cancel()
	}

	imgB64, err := c.processor.PrepareForModel(img, "jpeg", c.config.MaxImageSide, 85)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	// Decode base64 image to raw bytes
	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %v", err)
	}

	// Set model-specific parameters for better performance
	options := map[string]any{}
	modelLower := strings.ToLower(c.config.Model)
	if strings.Contains(modelLower, "minicpm-v") {
		options["temperature"] = 0.7
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.config.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: engine.DetectPrompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: options,
		// No Format field - let the prompt guide the format
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %v", err)
	}
	if responseContent == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	bounds := img.Bounds()
	return engine.ParseModelObjects(responseContent, bounds.Dx(), bounds.Dy())
}
