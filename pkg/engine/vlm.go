package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// DetectPrompt asks a vision language model for a strict JSON object list.
// Every chat-style backend sends the same prompt so their answers share one
// parser.
const DetectPrompt = `You are an object detector.

Return JSON only:
{
  "objects": [
    {
      "label": "string",
      "confidence": 0.0,
      "box": {"x1": 0.0, "y1": 0.0, "x2": 0.0, "y2": 0.0}
    }
  ]
}

HARD RULES
- Report every clearly visible animal or person as one object.
- All coordinates are normalized to [0,1] (NOT pixels), with x1 < x2 and y1 < y2.
- Each box must tightly enclose the object's visible body.
- Labels: lowercase singular COCO-style nouns ("cat", "dog", "person").
- Confidence is your own certainty in [0,1].
- If nothing is found, return {"objects":[]}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

type detectionPayload struct {
	Objects []detectedObject `json:"objects"`
}

type detectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        normBox `json:"box"`
}

type normBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// toPixels converts model coordinates to pixel space. The prompt demands
// normalized [0,1] values but some models answer in pixels anyway; any
// coordinate above 1.5 marks the box as already being pixel-space.
func (b normBox) toPixels(width, height int) types.BoundingBox {
	if b.X2 > 1.5 || b.Y2 > 1.5 {
		return types.BoundingBox{
			X1: int(b.X1),
			Y1: int(b.Y1),
			X2: int(b.X2),
			Y2: int(b.Y2),
		}
	}
	return types.BoundingBox{
		X1: int(b.X1 * float64(width)),
		Y1: int(b.Y1 * float64(height)),
		X2: int(b.X2 * float64(width)),
		Y2: int(b.Y2 * float64(height)),
	}
}

// ParseModelObjects parses the JSON a vision language model produced for
// DetectPrompt, tolerating fences, chatter, comments, and trailing commas.
// A response without any parseable JSON is an inference failure, never an
// implicit "no objects".
func ParseModelObjects(raw string, width, height int) ([]Object, error) {
	raw = sanitizeModelJSON(raw)

	var payload detectionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Try conservative brace-slice approach
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in model response")
		}
		if err2 := json.Unmarshal([]byte(raw[start:end+1]), &payload); err2 != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err2)
		}
	}

	objects := make([]Object, 0, len(payload.Objects))
	for _, obj := range payload.Objects {
		objects = append(objects, Object{
			Label:      strings.ToLower(strings.TrimSpace(obj.Label)),
			Confidence: obj.Confidence,
			Box:        obj.Box.toPixels(width, height),
		})
	}
	return objects, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
