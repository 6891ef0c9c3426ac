package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"promogen/internal/generation"
)

// extractJSON returns the first JSON object embedded in a model response,
// tolerating markdown code fences and prose around it.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if fenced := strings.Index(s, "```"); fenced >= 0 {
		s = s[fenced+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

// decodeResponse extracts and unmarshals the JSON object in a model
// response into out.
func decodeResponse(text string, out any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// parseAnalysis decodes and normalizes an analysis payload. Unknown
// enum values degrade to the unknown marker rather than failing the
// analysis; a missing category is the one thing downstream stages cannot
// work without.
func parseAnalysis(text string) (*generation.ImageAnalysis, error) {
	var analysis generation.ImageAnalysis
	if err := decodeResponse(text, &analysis); err != nil {
		return nil, err
	}

	analysis.Category = strings.ToLower(strings.TrimSpace(analysis.Category))
	if analysis.Category == "" {
		return nil, fmt.Errorf("analysis payload has no category")
	}

	switch analysis.Shape.Type {
	case generation.ShapeRectangular, generation.ShapeCylindrical,
		generation.ShapeSpherical, generation.ShapeIrregular:
	default:
		analysis.Shape.Type = generation.ShapeUnknown
	}

	switch analysis.Texture {
	case generation.TextureGlossy, generation.TextureMatte,
		generation.TextureMetallic, generation.TextureRough,
		generation.TextureSmooth:
	default:
		analysis.Texture = generation.TextureUnknown
	}

	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}
	return &analysis, nil
}

// parseDescription decodes a description payload.
func parseDescription(text string) (*generation.DescriptionText, error) {
	var out generation.DescriptionText
	if err := decodeResponse(text, &out); err != nil {
		return nil, err
	}
	if out.Long == "" && out.Short == "" {
		return nil, fmt.Errorf("description payload is empty")
	}
	return &out, nil
}

// parseCatchcopy decodes a catchcopy payload.
func parseCatchcopy(text string) (*generation.CatchcopyText, error) {
	var out generation.CatchcopyText
	if err := decodeResponse(text, &out); err != nil {
		return nil, err
	}
	if out.Main == "" {
		return nil, fmt.Errorf("catchcopy payload has no main copy")
	}
	return &out, nil
}

// parseSEO decodes an SEO payload.
func parseSEO(text string) (*generation.SEOText, error) {
	var out generation.SEOText
	if err := decodeResponse(text, &out); err != nil {
		return nil, err
	}
	if out.Title == "" {
		return nil, fmt.Errorf("seo payload has no title")
	}
	return &out, nil
}
