package llamacpp

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func completionServer(t *testing.T, captured *chatRequest, responseBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, responseBody)
	}))
}

func TestDetectParsesCompletion(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, &captured,
		`{"choices":[{"message":{"role":"assistant","content":"{\"objects\":[{\"label\":\"cat\",\"confidence\":0.9,\"box\":{\"x1\":0.25,\"y1\":0.25,\"x2\":0.75,\"y2\":0.75}}]}"}}]}`)
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	objects, err := client.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
	if objects[0].Label != "cat" || objects[0].Confidence != 0.9 {
		t.Errorf("object = %+v, want cat at 0.9", objects[0])
	}
	want := types.BoundingBox{X1: 160, Y1: 120, X2: 480, Y2: 360}
	if objects[0].Box != want {
		t.Errorf("box = %+v, want %+v", objects[0].Box, want)
	}

	if captured.Model != "test-model" {
		t.Errorf("request model = %q, want %q", captured.Model, "test-model")
	}
	if captured.Stream {
		t.Error("request must not ask for a streamed response")
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("request shape = %+v, want one message with two parts", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content[0].Text, `"objects"`) {
		t.Error("first content part must carry the detection prompt")
	}
	imagePart := captured.Messages[0].Content[1]
	if imagePart.ImageURL == nil || !strings.HasPrefix(imagePart.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("second content part = %+v, want a jpeg data URI", imagePart)
	}
}

func TestDetectFlattensContentParts(t *testing.T) {
	srv := completionServer(t, nil,
		`{"choices":[{"message":{"content":[{"type":"text","text":"{\"objects\":[]}"}]}}]}`)
	defer srv.Close()

	client, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	objects, err := client.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("got %d objects, want 0", len(objects))
	}
}

func TestDetectServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Detect(context.Background(), testImage())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Detect() error = %v, want a status 500 error", err)
	}
}

func TestDetectEmptyChoices(t *testing.T) {
	srv := completionServer(t, nil, `{"choices":[]}`)
	defer srv.Close()

	client, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Detect(context.Background(), testImage()); err == nil {
		t.Error("expected an error for a completion without choices")
	}
}

func TestDetectGarbageContentIsAnError(t *testing.T) {
	srv := completionServer(t, nil,
		`{"choices":[{"message":{"content":"I cannot help with that."}}]}`)
	defer srv.Close()

	client, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Detect(context.Background(), testImage()); err == nil {
		t.Error("expected an error for a response without JSON")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	client, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	defaults := DefaultConfig()
	if client.config.URL != defaults.URL {
		t.Errorf("URL = %q, want %q", client.config.URL, defaults.URL)
	}
	if client.config.Model != defaults.Model {
		t.Errorf("Model = %q, want %q", client.config.Model, defaults.Model)
	}
	if client.Name() != "llamacpp" {
		t.Errorf("Name() = %q, want %q", client.Name(), "llamacpp")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{URL: "://missing-scheme"}); err == nil {
		t.Error("expected an error for an unparseable URL")
	}
	if _, err := New(Config{URL: "http://llama:8080/v1/chat/completions"}); err != nil {
		t.Errorf("a URL with a path should be accepted, got %v", err)
	}
}
