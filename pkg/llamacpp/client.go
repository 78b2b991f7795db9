// Package llamacpp exposes a llama.cpp server's OpenAI-compatible chat API
// as a detection engine. It sends the shared detection prompt with the image
// inlined as a data URI and parses the answer with the common model parser.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/processing"
)

// Config holds llama.cpp server connection and model settings.
type Config struct {
	URL          string `json:"url"`
	Model        string `json:"model"`
	MaxImageSide int    `json:"max_image_side"`
}

// DefaultConfig returns settings for a local llama.cpp server.
func DefaultConfig() Config {
	return Config{
		URL:          "http://localhost:8080",
		Model:        "minicpm-v",
		MaxImageSide: 1536,
	}
}

// Client exposes a llama.cpp vision model as a detection engine.
type Client struct {
	baseURL    string
	config     Config
	httpClient *http.Client
	processor  *processing.Processor
}

// New creates a llama.cpp-backed engine.
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

	parsedURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Keep only scheme and host; the completions path is fixed.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		baseURL:    baseURL.String(),
		config:     config,
		httpClient: &http.Client{},
		processor:  processing.NewProcessor(),
	}, nil
}

// Name identifies the backend in errors and logs.
func (c *Client) Name() string {
	return "llamacpp"
}

// Close releases nothing; the HTTP client holds no connections open.
func (c *Client) Close() error {
	return nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Detect asks the vision model to locate objects in the image.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]engine.Object, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	// Add timeout if context doesn't have one (longer for CPU inference)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	imgB64, err := c.processor.PrepareForModel(img, "jpeg", c.config.MaxImageSide, 85)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	req := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: engine.DetectPrompt},
					{Type: "image_url", ImageURL: &imageRef{URL: "data:image/jpeg;base64," + imgB64}},
				},
			},
		},
		Temperature: 0.7,
		TopP:        0.8,
		MaxTokens:   4096,
		Stream:      false,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llama.cpp request error: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp returned status %d: %s", resp.StatusCode, snippet(string(respBody)))
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from llama.cpp")
	}

	content, err := messageText(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response from llama.cpp")
	}

	bounds := img.Bounds()
	return engine.ParseModelObjects(content, bounds.Dx(), bounds.Dy())
}

// messageText flattens the content field, which OpenAI-compatible servers
// return either as a plain string or as a list of typed parts.
func messageText(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected content shape: %s", snippet(string(raw)))
	}

	var b strings.Builder
	for _, part := range parts {
		if part.Type == "" || part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// snippet truncates a server response for error messages.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
