package ai

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"promogen/internal/generation"
)

// Gemini defaults. One multimodal model covers analysis and texts; image
// output needs an image-capable model.
const (
	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiImageModel = "gemini-2.5-flash-image"
)

// GeminiConfig configures the Gemini-backed client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	ImageModel  string
	Temperature float64
}

// GeminiClient implements every capability on the Gemini API, serving as
// the alternative provider for any of them.
type GeminiClient struct {
	client      *genai.Client
	model       string
	imageModel  string
	temperature float32
	logger      *slog.Logger
}

var (
	_ generation.Analyzer         = (*GeminiClient)(nil)
	_ generation.ImageSynthesizer = (*GeminiClient)(nil)
	_ generation.TextSynthesizer  = (*GeminiClient)(nil)
)

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultGeminiImageModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		imageModel:  cfg.ImageModel,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}, nil
}

// AnalyzeImage sends the product photo to Gemini and decodes the structured
// analysis it returns.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*generation.ImageAnalysis, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(analysisTemperature)),
		SystemInstruction: genai.NewContentFromText(analysisSystem, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, classifyProviderError(generation.StageAnalysis, err)
	}
	text := resp.Text()
	if text == "" {
		return nil, generation.NewTransientError(generation.StageAnalysis, "empty response from gemini", nil)
	}

	analysis, err := parseAnalysis(text)
	if err != nil {
		return nil, generation.NewFatalError(generation.StageAnalysis,
			fmt.Sprintf("malformed analysis payload: %v", err), err)
	}

	c.logger.Debug("image analyzed",
		slog.String("category", analysis.Category),
		slog.String("shape", string(analysis.Shape.Type)),
		slog.Float64("confidence", analysis.Confidence))
	return analysis, nil
}

// GenerateImage synthesizes one image. Gemini has no fixed size parameter,
// so the size class becomes a composition hint and the pipeline's resize
// step enforces exact dimensions.
func (c *GeminiClient) GenerateImage(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error) {
	prompt := req.Prompt + " " + aspectHint(req.Size)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, contents, config)
	if err != nil {
		return nil, classifyProviderError("", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				c.logger.Debug("image synthesized",
					slog.String("mime_type", part.InlineData.MIMEType),
					slog.Int("bytes", len(part.InlineData.Data)))
				return &generation.ImageResult{Data: part.InlineData.Data}, nil
			}
		}
	}
	return nil, generation.NewFatalError("", "no image returned", nil)
}

// GenerateDescription produces the long/short/bullets description bundle.
func (c *GeminiClient) GenerateDescription(ctx context.Context, tc generation.TextContext) (*generation.DescriptionText, error) {
	text, err := c.generateText(ctx, descriptionPrompt(tc))
	if err != nil {
		return nil, err
	}
	out, err := parseDescription(text)
	if err != nil {
		return nil, generation.NewFatalError(generation.StageTexts,
			fmt.Sprintf("malformed description payload: %v", err), err)
	}
	return out, nil
}

// GenerateCatchcopy produces the headline bundle.
func (c *GeminiClient) GenerateCatchcopy(ctx context.Context, tc generation.TextContext) (*generation.CatchcopyText, error) {
	text, err := c.generateText(ctx, catchcopyPrompt(tc))
	if err != nil {
		return nil, err
	}
	out, err := parseCatchcopy(text)
	if err != nil {
		return nil, generation.NewFatalError(generation.StageTexts,
			fmt.Sprintf("malformed catchcopy payload: %v", err), err)
	}
	return out, nil
}

// GenerateSEO produces the search metadata bundle.
func (c *GeminiClient) GenerateSEO(ctx context.Context, tc generation.TextContext) (*generation.SEOText, error) {
	text, err := c.generateText(ctx, seoPrompt(tc))
	if err != nil {
		return nil, err
	}
	out, err := parseSEO(text)
	if err != nil {
		return nil, generation.NewFatalError(generation.StageTexts,
			fmt.Sprintf("malformed seo payload: %v", err), err)
	}
	return out, nil
}

// generateText runs one JSON-mode text generation.
func (c *GeminiClient) generateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: genai.NewContentFromText(textSystem, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", classifyProviderError(generation.StageTexts, err)
	}
	text := resp.Text()
	if text == "" {
		return "", generation.NewTransientError(generation.StageTexts, "empty response from gemini", nil)
	}
	return text, nil
}

// aspectHint maps a synthesis size class to a composition instruction.
func aspectHint(size generation.ImageSize) string {
	switch size {
	case generation.ImageSizeLandscape:
		return "Wide landscape composition, 16:9 aspect ratio."
	case generation.ImageSizePortrait:
		return "Tall portrait composition, 9:16 aspect ratio."
	default:
		return "Square composition, 1:1 aspect ratio."
	}
}
