package ai

import (
	"context"
	"fmt"
	"log/slog"

	"promogen/internal/generation"
)

// Config bundles per-provider settings for the factory. API keys live here;
// the generation layer only ever sees them through its credential checks.
type Config struct {
	Claude ClaudeConfig
	OpenAI OpenAIConfig
	Gemini GeminiConfig
}

// NewCapabilities builds the capability set the pipeline runs on, creating
// one client per provider actually selected. Claude and Gemini clients are
// shared across the capabilities they serve.
func NewCapabilities(ctx context.Context, sel generation.ProviderSelection, cfg Config, logger *slog.Logger) (generation.Capabilities, error) {
	if sel.Analysis == "" {
		sel.Analysis = generation.ProviderClaude
	}
	if sel.Image == "" {
		sel.Image = generation.ProviderOpenAI
	}
	if sel.Text == "" {
		sel.Text = generation.ProviderClaude
	}

	var (
		caps   generation.Capabilities
		claude *ClaudeClient
		gemini *GeminiClient
	)

	claudeClient := func() (*ClaudeClient, error) {
		if claude != nil {
			return claude, nil
		}
		c, err := NewClaudeClient(cfg.Claude, logger)
		if err != nil {
			return nil, err
		}
		claude = c
		return claude, nil
	}
	geminiClient := func() (*GeminiClient, error) {
		if gemini != nil {
			return gemini, nil
		}
		g, err := NewGeminiClient(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, err
		}
		gemini = g
		return gemini, nil
	}

	switch sel.Analysis {
	case generation.ProviderClaude:
		c, err := claudeClient()
		if err != nil {
			return caps, fmt.Errorf("analysis provider: %w", err)
		}
		caps.Analyzer = c
	case generation.ProviderGemini:
		g, err := geminiClient()
		if err != nil {
			return caps, fmt.Errorf("analysis provider: %w", err)
		}
		caps.Analyzer = g
	default:
		return caps, fmt.Errorf("unknown analysis provider %q", sel.Analysis)
	}

	switch sel.Image {
	case generation.ProviderOpenAI:
		c, err := NewOpenAIImageClient(cfg.OpenAI, logger)
		if err != nil {
			return caps, fmt.Errorf("image provider: %w", err)
		}
		caps.Images = c
	case generation.ProviderGemini:
		g, err := geminiClient()
		if err != nil {
			return caps, fmt.Errorf("image provider: %w", err)
		}
		caps.Images = g
	default:
		return caps, fmt.Errorf("unknown image provider %q", sel.Image)
	}

	switch sel.Text {
	case generation.ProviderClaude:
		c, err := claudeClient()
		if err != nil {
			return caps, fmt.Errorf("text provider: %w", err)
		}
		caps.Texts = c
	case generation.ProviderGemini:
		g, err := geminiClient()
		if err != nil {
			return caps, fmt.Errorf("text provider: %w", err)
		}
		caps.Texts = g
	default:
		return caps, fmt.Errorf("unknown text provider %q", sel.Text)
	}

	logger.Info("provider capabilities wired",
		slog.String("analysis", sel.Analysis),
		slog.String("image", sel.Image),
		slog.String("text", sel.Text))
	return caps, nil
}
