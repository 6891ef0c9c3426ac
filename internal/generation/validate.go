package generation

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Image MIME types accepted at submission.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// DetectImageFormat sniffs the magic-number prefix of image bytes and returns
// the MIME type of the detected format. Only JPEG, PNG and WebP are accepted.
func DetectImageFormat(data []byte) (string, bool) {
	switch {
	case len(data) >= len(jpegMagic) && bytes.HasPrefix(data, jpegMagic):
		return MimeJPEG, true
	case len(data) >= len(pngMagic) && bytes.HasPrefix(data, pngMagic):
		return MimePNG, true
	case len(data) >= 12 && bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return MimeWebP, true
	default:
		return "", false
	}
}

// ValidateSubmission checks the image bytes and options before a job is
// admitted, and fills option defaults (platform list, tone, language). It
// returns the detected image MIME type. Any failure is an InvalidInput error
// tagged with the offending field; no job may be created on failure.
func ValidateSubmission(image []byte, opts *Options, cfg *Config) (string, error) {
	if len(image) == 0 {
		return "", NewInvalidInputError(FieldImageBuffer, "image data is required")
	}
	if len(image) > MaxImageBytes {
		return "", NewInvalidInputError(FieldImageBuffer,
			fmt.Sprintf("image exceeds maximum size of %d bytes", MaxImageBytes))
	}
	mime, ok := DetectImageFormat(image)
	if !ok {
		return "", NewInvalidInputError(FieldImageBuffer, "unsupported image format: expected JPEG, PNG or WebP")
	}

	if utf8.RuneCountInString(opts.BrandName) > MaxBrandNameLen {
		return "", NewInvalidInputError(FieldBrandName,
			fmt.Sprintf("brand name exceeds %d characters", MaxBrandNameLen))
	}
	if utf8.RuneCountInString(opts.ProductName) > MaxProductNameLen {
		return "", NewInvalidInputError(FieldProductName,
			fmt.Sprintf("product name exceeds %d characters", MaxProductNameLen))
	}
	if opts.PackageVariations < MinPackageVariations || opts.PackageVariations > MaxPackageVariations {
		return "", NewInvalidInputError(FieldPackageVariations,
			fmt.Sprintf("package variations must be between %d and %d", MinPackageVariations, MaxPackageVariations))
	}
	if utf8.RuneCountInString(opts.Tone) > MaxToneLen {
		return "", NewInvalidInputError(FieldTone,
			fmt.Sprintf("tone exceeds %d characters", MaxToneLen))
	}
	if utf8.RuneCountInString(opts.Language) > MaxLanguageLen {
		return "", NewInvalidInputError(FieldLanguage,
			fmt.Sprintf("language exceeds %d characters", MaxLanguageLen))
	}

	if len(opts.AdPlatforms) == 0 {
		opts.AdPlatforms = DefaultAdPlatforms()
	}
	for _, name := range opts.AdPlatforms {
		if _, ok := LookupPlatform(name); !ok {
			return "", NewInvalidInputError(FieldAdPlatforms,
				fmt.Sprintf("unknown ad platform %q (supported: %s)", name, strings.Join(SupportedPlatforms(), ", ")))
		}
	}
	if opts.Tone == "" {
		opts.Tone = DefaultTone
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	if err := validateCredentials(opts, cfg); err != nil {
		return "", err
	}
	return mime, nil
}

// validateCredentials checks that the API key for every capability the
// non-skipped stages need is configured. The vision capability is always
// required; image synthesis is required unless both packages and ads are
// skipped; text synthesis is required unless texts are skipped.
func validateCredentials(opts *Options, cfg *Config) error {
	if err := requireProviderKey(cfg, cfg.Providers.Analysis); err != nil {
		return err
	}
	if !(opts.SkipPackages && opts.SkipAds) {
		if err := requireProviderKey(cfg, cfg.Providers.Image); err != nil {
			return err
		}
	}
	if !opts.SkipTexts {
		if err := requireProviderKey(cfg, cfg.Providers.Text); err != nil {
			return err
		}
	}
	return nil
}

func requireProviderKey(cfg *Config, provider string) error {
	var key, field string
	switch provider {
	case ProviderClaude:
		key, field = cfg.Credentials.ClaudeAPIKey, FieldClaudeAPIKey
	case ProviderOpenAI:
		key, field = cfg.Credentials.OpenAIAPIKey, FieldOpenAIAPIKey
	case ProviderGemini:
		key, field = cfg.Credentials.GeminiAPIKey, FieldGeminiAPIKey
	default:
		return NewInvalidInputError(FieldClaudeAPIKey, fmt.Sprintf("unknown provider %q", provider))
	}
	if strings.TrimSpace(key) == "" {
		return NewInvalidInputError(field, fmt.Sprintf("%s is not configured", field))
	}
	return nil
}
