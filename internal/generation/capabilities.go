package generation

import (
	"context"
)

// ImageSize is a synthesis size class supported by image providers.
type ImageSize string

const (
	ImageSizeSquare    ImageSize = "1024x1024"
	ImageSizeLandscape ImageSize = "1792x1024"
	ImageSizePortrait  ImageSize = "1024x1792"
)

// Analyzer inspects a product image and returns a structured analysis.
// Implementations classify their failures into the normalized error kinds;
// malformed provider payloads surface as Fatal.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*ImageAnalysis, error)
}

// ImageRequest asks an image provider for one generated image.
type ImageRequest struct {
	Prompt string
	Size   ImageSize
}

// ImageResult is one generated image plus provider metadata.
type ImageResult struct {
	Data          []byte
	RevisedPrompt string
}

// ImageSynthesizer renders a prompt into an image of the requested size class.
type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// TextContext is the structured input shared by the three text sub-generations.
type TextContext struct {
	Analysis    *ImageAnalysis
	BrandName   string
	ProductName string
	Tone        string
	Language    string
}

// TextSynthesizer produces the three marketing text sub-bundles. The texts
// stage invokes the three methods in parallel and aggregates one status.
type TextSynthesizer interface {
	GenerateDescription(ctx context.Context, tc TextContext) (*DescriptionText, error)
	GenerateCatchcopy(ctx context.Context, tc TextContext) (*CatchcopyText, error)
	GenerateSEO(ctx context.Context, tc TextContext) (*SEOText, error)
}

// Capabilities bundles the external generative services the pipeline drives.
type Capabilities struct {
	Analyzer Analyzer
	Images   ImageSynthesizer
	Texts    TextSynthesizer
}
