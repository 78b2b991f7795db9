package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat-analyzer",
		Short: "Estimate cat body measurements from photos",
		Long: `cat-analyzer measures cats from single photos.

A detector finds the cat, a posture heuristic picks the scale, and the
pipeline derives chest girth, neck girth, body length, weight, and a
clothing size from the bounding box.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().String("config", "", "path to a JSON config file")

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
