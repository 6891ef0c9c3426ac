package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"promogen/internal/generation"
)

// OpenAI defaults. The image endpoint accepts exactly the three size
// classes the platform registry maps to.
const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "dall-e-3"
	imagesPath           = "/v1/images/generations"

	// Backstop only; per-attempt deadlines come from the caller's context.
	openAIClientTimeout = 2 * time.Minute
)

// OpenAIConfig configures the OpenAI image client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIImageClient implements image synthesis on the OpenAI images API.
// There is no official Go SDK for it, so this is a plain HTTP client with
// Bearer auth and b64_json responses.
type OpenAIImageClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger
}

var _ generation.ImageSynthesizer = (*OpenAIImageClient)(nil)

// NewOpenAIImageClient creates an OpenAI image client.
func NewOpenAIImageClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIImageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIImageClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: openAIClientTimeout},
		logger:     logger,
	}, nil
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// GenerateImage synthesizes one image at the requested size class.
func (c *OpenAIImageClient) GenerateImage(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error) {
	size := req.Size
	if size == "" {
		size = generation.ImageSizeSquare
	}

	payload := openAIImageRequest{
		Model:          c.cfg.Model,
		Prompt:         req.Prompt,
		N:              1,
		Size:           string(size),
		ResponseFormat: "b64_json",
	}

	var resp openAIImageResponse
	if err := c.post(ctx, imagesPath, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, generation.NewFatalError("", "no image returned", nil)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, generation.NewFatalError("",
			fmt.Sprintf("malformed image payload: %v", err), err)
	}

	c.logger.Debug("image synthesized",
		slog.String("size", string(size)),
		slog.Int("bytes", len(data)))
	return &generation.ImageResult{
		Data:          data,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}

// post runs one JSON request against the API. The stage on classified
// errors is left empty; the caller's retry wrapper fills it in.
func (c *OpenAIImageClient) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return generation.NewFatalError("", fmt.Sprintf("encode request: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return generation.NewFatalError("", fmt.Sprintf("build request: %v", err), err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generation.Classify(err, "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return generation.Classify(err, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus("", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return generation.NewFatalError("", fmt.Sprintf("decode response: %v", err), err)
	}
	return nil
}
