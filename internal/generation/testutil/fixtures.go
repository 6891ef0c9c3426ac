package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"time"

	"promogen/internal/generation"
)

// DiscardLogger returns a logger that drops every record, keeping test
// output readable.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TinyPNG returns a small valid PNG image.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// TinyJPEG returns a small valid JPEG image.
func TinyJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 16), B: uint8(y * 16), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WebPSample returns bytes carrying a well-formed WebP RIFF header. Enough
// for format sniffing; not a decodable image.
func WebPSample() []byte {
	data := make([]byte, 32)
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], 24)
	copy(data[8:12], "WEBP")
	copy(data[12:16], "VP8 ")
	return data
}

// PaddedJPEG returns a blob of exactly size bytes that sniffs as JPEG.
func PaddedJPEG(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8})
	return data
}

// DefaultAnalysis returns a plausible analysis record.
func DefaultAnalysis() *generation.ImageAnalysis {
	return &generation.ImageAnalysis{
		Category: "beverage",
		Colors: generation.ColorInfo{
			Primary:   "#1E66F5",
			Secondary: []string{"#FFFFFF"},
			Palette:   []string{"#1E66F5", "#FFFFFF", "#FFD400"},
		},
		Shape: generation.ShapeInfo{
			Type: generation.ShapeCylindrical,
			Dimensions: generation.RelativeDimensions{
				Width:  1.0,
				Height: 2.6,
				Depth:  1.0,
			},
		},
		Texture:    generation.TextureGlossy,
		Confidence: 0.92,
	}
}

// DefaultDescription returns a plausible description bundle.
func DefaultDescription() *generation.DescriptionText {
	return &generation.DescriptionText{
		Long:    "A refreshing sparkling drink crafted from natural spring water.",
		Short:   "Naturally refreshing sparkling water.",
		Bullets: []string{"Zero sugar", "Natural spring water", "Recyclable bottle"},
	}
}

// DefaultCatchcopy returns a plausible catchcopy bundle.
func DefaultCatchcopy() *generation.CatchcopyText {
	return &generation.CatchcopyText{
		Main:       "Taste the spring.",
		Variations: []string{"Pure refreshment.", "Bubbles, naturally."},
	}
}

// DefaultSEO returns a plausible SEO bundle.
func DefaultSEO() *generation.SEOText {
	return &generation.SEOText{
		Title:       "Natural Sparkling Water | Zero Sugar",
		Description: "Sparkling water from natural springs with zero sugar and a crisp finish.",
		Keywords:    []string{"sparkling water", "zero sugar", "natural"},
	}
}

// TestCredentials returns a credential set with every provider configured.
func TestCredentials() generation.CredentialSet {
	return generation.CredentialSet{
		ClaudeAPIKey: "test-claude-key",
		OpenAIAPIKey: "test-openai-key",
		GeminiAPIKey: "test-gemini-key",
	}
}

// TestConfig returns a configuration tuned for fast tests: millisecond
// retries and pacing, no reaper, all credentials present.
func TestConfig() *generation.Config {
	return generation.NewConfigBuilder().
		WithCleanupInterval(0).
		WithRetry(generation.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2.0,
		}).
		WithPacingDelay(2 * time.Millisecond).
		WithCredentials(TestCredentials()).
		Build()
}

// SampleOptions returns defaulted options with a brand and product set.
func SampleOptions() generation.Options {
	opts := generation.DefaultOptions()
	opts.BrandName = "Aqua Nord"
	opts.ProductName = "Sparkling Spring Water"
	return opts
}
