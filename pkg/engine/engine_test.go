package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestInferenceErrorMessage(t *testing.T) {
	err := &InferenceError{Backend: "dnn", Err: errors.New("forward pass failed")}

	want := "dnn inference failed: forward pass failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestInferenceErrorUnwrap(t *testing.T) {
	cause := errors.New("model not loaded")
	wrapped := fmt.Errorf("analyze: %w", &InferenceError{Backend: "ollama", Err: cause})

	var infErr *InferenceError
	if !errors.As(wrapped, &infErr) {
		t.Fatal("expected to find an InferenceError in the chain")
	}
	if infErr.Backend != "ollama" {
		t.Errorf("backend = %q, want ollama", infErr.Backend)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected the root cause to survive unwrapping")
	}
}
