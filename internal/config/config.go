// Package config loads application settings from defaults, an optional JSON
// file, and environment overrides, in that order. Environment names follow
// the deployment conventions of the serving layer (APP_HOST, APP_PORT, ...).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/cat-analyzer/pkg/measure"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Engine   EngineConfig   `json:"engine"`
	Pipeline PipelineConfig `json:"pipeline"`
	Store    StoreConfig    `json:"store"`
}

// ServerConfig holds the HTTP serving settings
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	AuthToken   string   `json:"auth_token"`
	CORSOrigins []string `json:"cors_origins"`
	MaxUploadMB int64    `json:"max_upload_mb"`
	UploadDir   string   `json:"upload_dir"`
}

// EngineConfig selects and configures the detection backend
type EngineConfig struct {
	// Backend is "dnn" (OpenCV SSD) or one of the vision LLM backends,
	// "ollama" and "llamacpp".
	Backend     string `json:"backend"`
	ModelPath   string `json:"model_path"`
	ConfigPath  string `json:"config_path"`
	OllamaURL   string `json:"ollama_url"`
	OllamaModel string `json:"ollama_model"`
	LlamaURL    string `json:"llama_url"`
	LlamaModel  string `json:"llama_model"`
}

// PipelineConfig holds the measurement pipeline tunables
type PipelineConfig struct {
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	DetectTimeoutSec    int                `json:"detect_timeout_sec"`
	TorsoHeightCM       float64            `json:"torso_height_cm"`
	Breeds              measure.BreedTable `json:"breeds"`
	SizeBands           []measure.SizeBand `json:"size_bands"`
}

// StoreConfig holds the analysis store settings
type StoreConfig struct {
	Path string `json:"path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			MaxUploadMB: 10,
			UploadDir:   "uploads",
		},
		Engine: EngineConfig{
			Backend:     "dnn",
			ModelPath:   filepath.Join("models", "frozen_inference_graph.pb"),
			ConfigPath:  filepath.Join("models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"),
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "minicpm-v",
			LlamaURL:    "http://localhost:8080",
			LlamaModel:  "minicpm-v",
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.5,
			DetectTimeoutSec:    30,
			TorsoHeightCM:       measure.DefaultTorsoHeightCM,
			Breeds:              measure.DefaultBreedTable(),
			SizeBands:           measure.DefaultSizeBands(),
		},
		Store: StoreConfig{
			Path: filepath.Join("data", "analyses.db"),
		},
	}
}

// Load builds the effective configuration: defaults, then the optional JSON
// file, then environment overrides.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Missing sections keep their defaults.
	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("APP_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("APP_PORT", c.Server.Port)
	c.Server.AuthToken = getEnv("AUTH_TOKEN", c.Server.AuthToken)
	c.Server.MaxUploadMB = getEnvAsInt64("MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitAndTrim(origins)
	}

	c.Engine.Backend = getEnv("ENGINE_BACKEND", c.Engine.Backend)
	c.Engine.ModelPath = getEnv("MODEL_PATH", c.Engine.ModelPath)
	c.Engine.ConfigPath = getEnv("CONFIG_PATH", c.Engine.ConfigPath)
	c.Engine.OllamaURL = getEnv("OLLAMA_URL", c.Engine.OllamaURL)
	c.Engine.OllamaModel = getEnv("OLLAMA_MODEL", c.Engine.OllamaModel)
	c.Engine.LlamaURL = getEnv("LLAMA_URL", c.Engine.LlamaURL)
	c.Engine.LlamaModel = getEnv("LLAMA_MODEL", c.Engine.LlamaModel)

	c.Pipeline.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.Pipeline.ConfidenceThreshold)
	c.Pipeline.DetectTimeoutSec = getEnvAsInt("DETECT_TIMEOUT_SEC", c.Pipeline.DetectTimeoutSec)
	c.Pipeline.TorsoHeightCM = getEnvAsFloat("TORSO_HEIGHT_CM", c.Pipeline.TorsoHeightCM)

	c.Store.Path = getEnv("DB_PATH", c.Store.Path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch c.Engine.Backend {
	case "dnn", "ollama", "llamacpp":
	default:
		return fmt.Errorf("engine.backend must be \"dnn\", \"ollama\", or \"llamacpp\", got %q", c.Engine.Backend)
	}

	if c.Pipeline.ConfidenceThreshold <= 0 || c.Pipeline.ConfidenceThreshold >= 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be between 0 and 1 exclusive")
	}

	if c.Pipeline.DetectTimeoutSec < 1 {
		return fmt.Errorf("pipeline.detect_timeout_sec must be positive")
	}

	if c.Pipeline.TorsoHeightCM <= 0 {
		return fmt.Errorf("pipeline.torso_height_cm must be positive")
	}

	for i, band := range c.Pipeline.SizeBands {
		if band.MaxWeightKg <= 0 || band.MaxChestCM <= 0 {
			return fmt.Errorf("pipeline.size_bands[%d] limits must be positive", i)
		}
		if band.Category == "" {
			return fmt.Errorf("pipeline.size_bands[%d] is missing a category", i)
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}

	return nil
}

// Addr returns the host:port the server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "cat-analyzer", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
