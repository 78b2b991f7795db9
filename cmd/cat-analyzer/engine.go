package main

import (
	"fmt"
	"time"

	catanalyzer "github.com/menta2k/cat-analyzer"
	"github.com/menta2k/cat-analyzer/internal/config"
	"github.com/menta2k/cat-analyzer/pkg/dnn"
	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/llamacpp"
	"github.com/menta2k/cat-analyzer/pkg/ollama"
)

// buildEngine constructs the configured inference backend.
func buildEngine(engineConfig config.EngineConfig) (engine.Engine, error) {
	switch engineConfig.Backend {
	case "dnn":
		return dnn.New(dnn.Config{
			ModelPath:  engineConfig.ModelPath,
			ConfigPath: engineConfig.ConfigPath,
		}), nil
	case "ollama":
		return ollama.New(ollama.Config{
			URL:   engineConfig.OllamaURL,
			Model: engineConfig.OllamaModel,
		})
	case "llamacpp":
		return llamacpp.New(llamacpp.Config{
			URL:   engineConfig.LlamaURL,
			Model: engineConfig.LlamaModel,
		})
	default:
		return nil, fmt.Errorf("unknown engine backend %q (use dnn, ollama, or llamacpp)", engineConfig.Backend)
	}
}

// analyzerConfig maps the pipeline section of the app config onto the
// analyzer's knobs.
func analyzerConfig(cfg *config.Config) catanalyzer.Config {
	analyzerConfig := catanalyzer.DefaultConfig()
	analyzerConfig.Detection.Threshold = cfg.Pipeline.ConfidenceThreshold
	analyzerConfig.Detection.Timeout = time.Duration(cfg.Pipeline.DetectTimeoutSec) * time.Second
	analyzerConfig.Measure.TorsoHeightCM = cfg.Pipeline.TorsoHeightCM
	analyzerConfig.Breeds = cfg.Pipeline.Breeds
	analyzerConfig.SizeBands = cfg.Pipeline.SizeBands
	return analyzerConfig
}
