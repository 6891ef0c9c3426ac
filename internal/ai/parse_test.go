package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogen/internal/generation"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":1}\n```", want: "{\"a\":1}"},
		{name: "fenced without language", in: "```\n{\"a\":1}\n```", want: "{\"a\":1}"},
		{name: "prose around object", in: "Here is the result: {\"a\":1} Hope it helps!", want: `{"a":1}`},
		{name: "nested braces", in: `{"a":{"b":2}}`, want: `{"a":{"b":2}}`},
		{name: "no object", in: "sorry, I cannot help with that", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	payload := `{
		"category": "Beverage",
		"colors": {"primary": "#1E66F5", "palette": ["#FFFFFF"]},
		"shape": {"type": "cylindrical", "dimensions": {"width": 1.0, "height": 2.6, "depth": 1.0}},
		"texture": "glossy",
		"confidence": 0.92
	}`

	analysis, err := parseAnalysis(payload)
	require.NoError(t, err)
	assert.Equal(t, "beverage", analysis.Category)
	assert.Equal(t, "#1E66F5", analysis.Colors.Primary)
	assert.Equal(t, generation.ShapeCylindrical, analysis.Shape.Type)
	assert.Equal(t, 2.6, analysis.Shape.Dimensions.Height)
	assert.Equal(t, generation.TextureGlossy, analysis.Texture)
	assert.Equal(t, 0.92, analysis.Confidence)
}

func TestParseAnalysis_Normalization(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(*testing.T, *generation.ImageAnalysis)
		wantErr bool
	}{
		{
			name:    "missing category fails",
			payload: `{"shape": {"type": "rectangular"}}`,
			wantErr: true,
		},
		{
			name:    "unknown shape degrades",
			payload: `{"category": "toy", "shape": {"type": "dodecahedral"}}`,
			check: func(t *testing.T, a *generation.ImageAnalysis) {
				assert.Equal(t, generation.ShapeUnknown, a.Shape.Type)
			},
		},
		{
			name:    "unknown texture degrades",
			payload: `{"category": "toy", "texture": "fuzzy"}`,
			check: func(t *testing.T, a *generation.ImageAnalysis) {
				assert.Equal(t, generation.TextureUnknown, a.Texture)
			},
		},
		{
			name:    "confidence clamped high",
			payload: `{"category": "toy", "confidence": 3.5}`,
			check: func(t *testing.T, a *generation.ImageAnalysis) {
				assert.Equal(t, 1.0, a.Confidence)
			},
		},
		{
			name:    "confidence clamped low",
			payload: `{"category": "toy", "confidence": -1}`,
			check: func(t *testing.T, a *generation.ImageAnalysis) {
				assert.Equal(t, 0.0, a.Confidence)
			},
		},
		{
			name:    "not json",
			payload: "the product is a bottle",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := parseAnalysis(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, analysis)
		})
	}
}

func TestParseTextPayloads(t *testing.T) {
	desc, err := parseDescription(`{"long": "A fine drink.", "short": "Fine.", "bullets": ["crisp"]}`)
	require.NoError(t, err)
	assert.Equal(t, "A fine drink.", desc.Long)
	assert.Equal(t, []string{"crisp"}, desc.Bullets)

	_, err = parseDescription(`{"bullets": []}`)
	assert.Error(t, err)

	copyText, err := parseCatchcopy(`{"main": "Taste the spring.", "variations": ["Pure and simple."]}`)
	require.NoError(t, err)
	assert.Equal(t, "Taste the spring.", copyText.Main)

	_, err = parseCatchcopy(`{"variations": ["x"]}`)
	assert.Error(t, err)

	seo, err := parseSEO(`{"title": "Spring Water", "description": "Crisp water.", "keywords": ["water"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Spring Water", seo.Title)

	_, err = parseSEO(`{"keywords": []}`)
	assert.Error(t, err)
}

func TestTextPrompts_CarryContext(t *testing.T) {
	tc := generation.TextContext{
		Analysis: &generation.ImageAnalysis{
			Category: "beverage",
			Colors:   generation.ColorInfo{Primary: "#1E66F5"},
			Texture:  generation.TextureGlossy,
		},
		BrandName:   "Aqua Nord",
		ProductName: "Spring Water",
		Tone:        "playful",
		Language:    "ja",
	}

	for name, prompt := range map[string]string{
		"description": descriptionPrompt(tc),
		"catchcopy":   catchcopyPrompt(tc),
		"seo":         seoPrompt(tc),
	} {
		assert.Contains(t, prompt, "Spring Water", name)
		assert.Contains(t, prompt, "Aqua Nord", name)
		assert.Contains(t, prompt, "playful", name)
		assert.Contains(t, prompt, "ja", name)
		assert.Contains(t, prompt, "JSON", name)
	}
}
