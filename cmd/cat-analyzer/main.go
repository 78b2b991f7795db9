package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	catanalyzer "github.com/menta2k/cat-analyzer"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(catanalyzer.GetVersion()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
