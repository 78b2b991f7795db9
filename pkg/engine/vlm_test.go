package engine

import (
	"strings"
	"testing"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

func TestParseModelObjects(t *testing.T) {
	raw := `{"objects":[
		{"label":"Cat","confidence":0.87,"box":{"x1":0.25,"y1":0.25,"x2":0.75,"y2":0.75}},
		{"label":"dog","confidence":0.4,"box":{"x1":0.0,"y1":0.0,"x2":0.5,"y2":0.5}}
	]}`

	objects, err := ParseModelObjects(raw, 640, 480)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(objects))
	}
	if objects[0].Label != "cat" {
		t.Errorf("label = %q, want lowercased %q", objects[0].Label, "cat")
	}
	if objects[0].Confidence != 0.87 {
		t.Errorf("confidence = %v, want 0.87", objects[0].Confidence)
	}
	want := types.BoundingBox{X1: 160, Y1: 120, X2: 480, Y2: 360}
	if objects[0].Box != want {
		t.Errorf("box = %+v, want %+v", objects[0].Box, want)
	}
	if objects[1].Box.X2 != 320 || objects[1].Box.Y2 != 240 {
		t.Errorf("second box = %+v, want x2=320 y2=240", objects[1].Box)
	}
}

func TestParseModelObjectsPixelCoordinates(t *testing.T) {
	raw := `{"objects":[{"label":"cat","confidence":0.9,"box":{"x1":100,"y1":50,"x2":300,"y2":250}}]}`

	objects, err := ParseModelObjects(raw, 640, 480)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	want := types.BoundingBox{X1: 100, Y1: 50, X2: 300, Y2: 250}
	if objects[0].Box != want {
		t.Errorf("box = %+v, want pixel values kept as %+v", objects[0].Box, want)
	}
}

func TestParseModelObjectsFencedResponse(t *testing.T) {
	raw := "```json\n{\"objects\":[{\"label\":\"cat\",\"confidence\":0.8,\"box\":{\"x1\":0.1,\"y1\":0.1,\"x2\":0.9,\"y2\":0.9}}]}\n```"

	objects, err := ParseModelObjects(raw, 100, 100)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	if len(objects) != 1 || objects[0].Label != "cat" {
		t.Errorf("objects = %+v, want one cat", objects)
	}
}

func TestParseModelObjectsWithChatter(t *testing.T) {
	raw := `Sure! Here is the JSON you asked for:
{"objects":[{"label":"cat","confidence":0.7,"box":{"x1":0.2,"y1":0.2,"x2":0.8,"y2":0.8}}]}
Let me know if you need anything else.`

	objects, err := ParseModelObjects(raw, 100, 100)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
}

func TestParseModelObjectsCommentsAndTrailingCommas(t *testing.T) {
	raw := `{"objects":[ // detections
		{"label":"cat","confidence":0.9,"box":{"x1":0.1,"y1":0.1,"x2":0.9,"y2":0.9}},
	]}`

	objects, err := ParseModelObjects(raw, 640, 480)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	want := types.BoundingBox{X1: 64, Y1: 48, X2: 576, Y2: 432}
	if objects[0].Box != want {
		t.Errorf("box = %+v, want %+v", objects[0].Box, want)
	}
}

func TestParseModelObjectsEmptyList(t *testing.T) {
	objects, err := ParseModelObjects(`{"objects":[]}`, 100, 100)
	if err != nil {
		t.Fatalf("ParseModelObjects() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("got %d objects, want 0", len(objects))
	}
}

func TestParseModelObjectsGarbageIsAnError(t *testing.T) {
	if _, err := ParseModelObjects("I cannot help with that.", 100, 100); err == nil {
		t.Error("expected an error for a response without JSON")
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean",
			input: `{"objects":[]}`,
			want:  `{"objects":[]}`,
		},
		{
			name:  "fenced",
			input: "```json\n{\"objects\":[]}\n```",
			want:  `{"objects":[]}`,
		},
		{
			name:  "block comment",
			input: `{"objects":[] /* none found */}`,
			want:  `{"objects":[] }`,
		},
		{
			name:  "trailing comma",
			input: `{"objects":[],}`,
			want:  `{"objects":[]}`,
		},
		{
			name:  "surrounding chatter",
			input: `Here you go: {"objects":[]} hope that helps`,
			want:  `{"objects":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeModelJSON(tt.input); got != tt.want {
				t.Errorf("sanitizeModelJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetectPromptDemandsJSON(t *testing.T) {
	if !strings.Contains(DetectPrompt, `"objects"`) {
		t.Error("prompt must describe the objects payload")
	}
	if !strings.Contains(DetectPrompt, "JSON only") {
		t.Error("prompt must demand a JSON-only answer")
	}
}
