package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"promogen/internal/generation"
)

// Claude defaults. Analysis runs cooler than copywriting so repeated runs
// of the same product stay consistent.
const (
	defaultClaudeModel     = "claude-sonnet-4-20250514"
	defaultClaudeMaxTokens = 2048
	defaultTemperature     = 0.7
	analysisTemperature    = 0.2
)

// ClaudeConfig configures the Anthropic-backed client.
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// ClaudeClient implements vision analysis and text synthesis on the
// Anthropic Messages API.
type ClaudeClient struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
	logger      *slog.Logger
}

var (
	_ generation.Analyzer        = (*ClaudeClient)(nil)
	_ generation.TextSynthesizer = (*ClaudeClient)(nil)
)

// NewClaudeClient creates a Claude client.
func NewClaudeClient(cfg ClaudeConfig, logger *slog.Logger) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultClaudeModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultClaudeMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ClaudeClient{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       anthropic.Model(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// AnalyzeImage sends the product photo to Claude and decodes the structured
// analysis it returns.
func (c *ClaudeClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*generation.ImageAnalysis, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	text, err := c.complete(ctx, generation.StageAnalysis, analysisSystem, analysisTemperature,
		anthropic.NewImageBlockBase64(mimeType, encoded),
		anthropic.NewTextBlock(analysisPrompt),
	)
	if err != nil {
		return nil, err
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

// GenerateDescription produces the long/short/bullets description bundle.
func (c *ClaudeClient) GenerateDescription(ctx context.Context, tc generation.TextContext) (*generation.DescriptionText, error) {
	text, err := c.complete(ctx, generation.StageTexts, textSystem, c.temperature,
		anthropic.NewTextBlock(descriptionPrompt(tc)))
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
func (c *ClaudeClient) GenerateCatchcopy(ctx context.Context, tc generation.TextContext) (*generation.CatchcopyText, error) {
	text, err := c.complete(ctx, generation.StageTexts, textSystem, c.temperature,
		anthropic.NewTextBlock(catchcopyPrompt(tc)))
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
func (c *ClaudeClient) GenerateSEO(ctx context.Context, tc generation.TextContext) (*generation.SEOText, error) {
	text, err := c.complete(ctx, generation.StageTexts, textSystem, c.temperature,
		anthropic.NewTextBlock(seoPrompt(tc)))
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

// complete runs one Messages call and concatenates the text blocks of the
// response.
func (c *ClaudeClient) complete(ctx context.Context, stage generation.StageName, system string, temperature float64, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyProviderError(stage, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", generation.NewTransientError(stage, "empty response from claude", nil)
	}
	return text.String(), nil
}
