package main

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/spf13/cobra"

	catanalyzer "github.com/menta2k/cat-analyzer"
	"github.com/menta2k/cat-analyzer/internal/config"
	"github.com/menta2k/cat-analyzer/internal/utils"
	"github.com/menta2k/cat-analyzer/pkg/processing"
)

func newAnalyzeCmd() *cobra.Command {
	var breed string
	var backend string
	var threshold float64
	var saveCrop string
	var saveAnnotated string

	cmd := &cobra.Command{
		Use:   "analyze <image path or URL>",
		Short: "Analyze one cat photo and print the measurements as JSON",
		Args:  cobra.ExactArgs(1),
		Example: `  # Analyze a local photo
  cat-analyzer analyze cat.jpg

  # Analyze a photo from a URL with a known breed
  cat-analyzer analyze https://example.com/cat.jpg --breed maine_coon

  # Use the Ollama backend and keep the annotated image
  cat-analyzer analyze cat.jpg --backend ollama --save-annotated boxed.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Engine.Backend = backend
			}

			eng, err := buildEngine(cfg.Engine)
			if err != nil {
				return err
			}

			analyzer := catanalyzer.NewWithConfig(eng, analyzerConfig(cfg))
			defer analyzer.Close()

			processor := processing.NewProcessor()
			img, err := processor.LoadSmart(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			opts := catanalyzer.Options{Breed: breed, Threshold: threshold}
			result, err := analyzer.Analyze(cmd.Context(), img, opts)
			if err != nil {
				return err
			}

			if result.IsCat && result.Detection.BoundingBox != nil {
				box := *result.Detection.BoundingBox
				if saveCrop != "" {
					crop, err := processor.CropToBox(img, box)
					if err != nil {
						return fmt.Errorf("failed to crop detection: %w", err)
					}
					if err := saveImage(processor, crop, saveCrop); err != nil {
						return fmt.Errorf("failed to save crop: %w", err)
					}
				}
				if saveAnnotated != "" {
					annotated := processor.AnnotateDetection(img, box)
					if err := saveImage(processor, annotated, saveAnnotated); err != nil {
						return fmt.Errorf("failed to save annotated image: %w", err)
					}
				}
			}

			output, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}

	cmd.Flags().StringVar(&breed, "breed", "", "breed used for the weight estimate")
	cmd.Flags().StringVar(&backend, "backend", "", "override the inference backend: dnn, ollama, or llamacpp")
	cmd.Flags().Float64Var(&threshold, "confidence", 0, "override the detection confidence threshold (0..1)")
	cmd.Flags().StringVar(&saveCrop, "save-crop", "", "write the detected cat crop to this path")
	cmd.Flags().StringVar(&saveAnnotated, "save-annotated", "", "write a copy with the detection box drawn to this path")

	return cmd
}

// saveImage picks the output format from the file extension.
func saveImage(processor *processing.Processor, img image.Image, path string) error {
	format := utils.GetFileExtension(path)
	if format == "" {
		format = "png"
	}
	return processor.SaveImage(img, path, format, 90, false)
}
