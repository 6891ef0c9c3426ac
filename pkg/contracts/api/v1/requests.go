// Package api contains the HTTP API contract for PromoGen.
// Version v1 represents the current stable API version.
package api

// JobSubmitRequest carries the option fields of a job submission. The
// fields arrive as parts of a multipart form next to the image part; the
// image itself is validated by the generation core against its size and
// magic-number rules, not by struct tags.
//
// String bounds mirror the core limits so malformed requests are rejected
// before the pipeline sees them. packageVariations is resolved to its
// default before validation, so a missing field passes and an explicit
// zero fails.
type JobSubmitRequest struct {
	BrandName         string   `json:"brandName" validate:"omitempty,max=100"`
	ProductName       string   `json:"productName" validate:"omitempty,max=200"`
	PackageTemplate   string   `json:"packageTemplate" validate:"omitempty,max=100"`
	PackageVariations int      `json:"packageVariations" validate:"gte=1,lte=10"`
	AdPlatforms       []string `json:"adPlatforms" validate:"omitempty,dive,platform"`
	Tone              string   `json:"tone" validate:"omitempty,max=50"`
	Language          string   `json:"language" validate:"omitempty,max=50"`
	SkipPackages      bool     `json:"skipPackages"`
	SkipAds           bool     `json:"skipAds"`
	SkipTexts         bool     `json:"skipTexts"`
}
