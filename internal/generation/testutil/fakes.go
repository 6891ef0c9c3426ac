// Package testutil provides fakes, fixtures and assertions for testing the
// generation pipeline without reaching any external provider.
package testutil

import (
	"context"
	"sync"

	"promogen/internal/generation"
)

// FakeAnalyzer is a configurable Analyzer implementation. Without an
// AnalyzeFunc it answers with DefaultAnalysis.
type FakeAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, image []byte, mimeType string) (*generation.ImageAnalysis, error)

	mu    sync.Mutex
	calls int
}

// AnalyzeImage implements generation.Analyzer.
func (f *FakeAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*generation.ImageAnalysis, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.AnalyzeFunc != nil {
		return f.AnalyzeFunc(ctx, image, mimeType)
	}
	return DefaultAnalysis(), nil
}

// Calls returns how many times AnalyzeImage ran.
func (f *FakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeImageSynthesizer is a configurable ImageSynthesizer implementation
// that records every request. Without a GenerateFunc it answers with a tiny
// valid PNG.
type FakeImageSynthesizer struct {
	GenerateFunc func(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error)

	mu       sync.Mutex
	requests []generation.ImageRequest
}

// GenerateImage implements generation.ImageSynthesizer.
func (f *FakeImageSynthesizer) GenerateImage(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, req)
	}
	return &generation.ImageResult{Data: TinyPNG(), RevisedPrompt: req.Prompt}, nil
}

// Calls returns how many times GenerateImage ran.
func (f *FakeImageSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of every request seen, in arrival order.
func (f *FakeImageSynthesizer) Requests() []generation.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]generation.ImageRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// FakeTextSynthesizer is a configurable TextSynthesizer implementation.
// Unset sub-generation funcs answer with the default fixtures.
type FakeTextSynthesizer struct {
	DescriptionFunc func(ctx context.Context, tc generation.TextContext) (*generation.DescriptionText, error)
	CatchcopyFunc   func(ctx context.Context, tc generation.TextContext) (*generation.CatchcopyText, error)
	SEOFunc         func(ctx context.Context, tc generation.TextContext) (*generation.SEOText, error)

	mu    sync.Mutex
	calls int
}

// GenerateDescription implements generation.TextSynthesizer.
func (f *FakeTextSynthesizer) GenerateDescription(ctx context.Context, tc generation.TextContext) (*generation.DescriptionText, error) {
	f.track()
	if f.DescriptionFunc != nil {
		return f.DescriptionFunc(ctx, tc)
	}
	return DefaultDescription(), nil
}

// GenerateCatchcopy implements generation.TextSynthesizer.
func (f *FakeTextSynthesizer) GenerateCatchcopy(ctx context.Context, tc generation.TextContext) (*generation.CatchcopyText, error) {
	f.track()
	if f.CatchcopyFunc != nil {
		return f.CatchcopyFunc(ctx, tc)
	}
	return DefaultCatchcopy(), nil
}

// GenerateSEO implements generation.TextSynthesizer.
func (f *FakeTextSynthesizer) GenerateSEO(ctx context.Context, tc generation.TextContext) (*generation.SEOText, error) {
	f.track()
	if f.SEOFunc != nil {
		return f.SEOFunc(ctx, tc)
	}
	return DefaultSEO(), nil
}

func (f *FakeTextSynthesizer) track() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

// Calls returns how many sub-generation calls ran in total.
func (f *FakeTextSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeCapabilities returns a capability set backed by fresh fakes, which are
// also returned for per-test configuration.
func FakeCapabilities() (generation.Capabilities, *FakeAnalyzer, *FakeImageSynthesizer, *FakeTextSynthesizer) {
	analyzer := &FakeAnalyzer{}
	images := &FakeImageSynthesizer{}
	texts := &FakeTextSynthesizer{}
	return generation.Capabilities{
		Analyzer: analyzer,
		Images:   images,
		Texts:    texts,
	}, analyzer, images, texts
}
