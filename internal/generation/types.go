package generation

import (
	"time"
)

// Stage identifiers
const (
	StageAnalysis StageName = "analysis"
	StagePackages StageName = "packages"
	StageAds      StageName = "ads"
	StageTexts    StageName = "texts"
)

// StageName identifies one stage of the generation pipeline.
type StageName string

// AllStages returns the pipeline stages in execution order.
func AllStages() []StageName {
	return []StageName{StageAnalysis, StagePackages, StageAds, StageTexts}
}

// StageStatus represents the status of a single stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageDone       StageStatus = "done"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// JobStatus represents the overall job status.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// EventKind classifies a progress event.
type EventKind string

const (
	// EventProgress is any non-terminal state change.
	EventProgress EventKind = "progress"
	// EventComplete is the transition to Completed; carries the final result.
	EventComplete EventKind = "complete"
	// EventError is the transition to Failed; carries the error message.
	EventError EventKind = "error"
)

// Package variation styles
const (
	StyleMinimalist = "minimalist"
	StyleVibrant    = "vibrant"
	StylePremium    = "premium"
)

// Options are the frozen submission options for one job.
type Options struct {
	BrandName         string   `json:"brand_name,omitempty"`
	ProductName       string   `json:"product_name,omitempty"`
	PackageVariations int      `json:"package_variations"`
	AdPlatforms       []string `json:"ad_platforms,omitempty"`
	PackageTemplate   string   `json:"package_template,omitempty"`
	Tone              string   `json:"tone,omitempty"`
	Language          string   `json:"language,omitempty"`
	SkipPackages      bool     `json:"skip_packages,omitempty"`
	SkipAds           bool     `json:"skip_ads,omitempty"`
	SkipTexts         bool     `json:"skip_texts,omitempty"`
}

// DefaultOptions returns options with all defaults applied.
func DefaultOptions() Options {
	return Options{
		PackageVariations: DefaultPackageVariations,
		AdPlatforms:       DefaultAdPlatforms(),
		Tone:              DefaultTone,
		Language:          DefaultLanguage,
	}
}

// Clone returns a deep copy of the options.
func (o Options) Clone() Options {
	c := o
	if o.AdPlatforms != nil {
		c.AdPlatforms = make([]string, len(o.AdPlatforms))
		copy(c.AdPlatforms, o.AdPlatforms)
	}
	return c
}

// Job is one in-flight or terminal generation request.
type Job struct {
	ID          string                    `json:"id"`
	Status      JobStatus                 `json:"status"`
	Progress    map[StageName]StageStatus `json:"progress"`
	Options     Options                   `json:"options"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Result      *Result                   `json:"result,omitempty"`
}

// Clone returns a snapshot copy of the job. Image payloads inside the result
// are shared with the store and must be treated as read-only.
func (j *Job) Clone() *Job {
	c := &Job{
		ID:        j.ID,
		Status:    j.Status,
		Options:   j.Options.Clone(),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Error:     j.Error,
		Progress:  make(map[StageName]StageStatus, len(j.Progress)),
	}
	for k, v := range j.Progress {
		c.Progress[k] = v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		c.Result = j.Result.Clone()
	}
	return c
}

// Result is the lazily filled bag of per-stage outputs.
type Result struct {
	Analysis    *ImageAnalysis  `json:"analysis,omitempty"`
	Packages    []PackageDesign `json:"packages,omitempty"`
	Ads         []AdImage       `json:"ads,omitempty"`
	Texts       *TextBundle     `json:"texts,omitempty"`
	DownloadURL string          `json:"download_url,omitempty"`
}

// Clone returns a copy of the result. Image payloads are shared.
func (r *Result) Clone() *Result {
	c := &Result{
		Analysis:    r.Analysis,
		Texts:       r.Texts,
		DownloadURL: r.DownloadURL,
	}
	if r.Packages != nil {
		c.Packages = make([]PackageDesign, len(r.Packages))
		copy(c.Packages, r.Packages)
	}
	if r.Ads != nil {
		c.Ads = make([]AdImage, len(r.Ads))
		copy(c.Ads, r.Ads)
	}
	return c
}

// ShapeType classifies the product silhouette detected by the analyzer.
type ShapeType string

const (
	ShapeRectangular ShapeType = "rectangular"
	ShapeCylindrical ShapeType = "cylindrical"
	ShapeSpherical   ShapeType = "spherical"
	ShapeIrregular   ShapeType = "irregular"
	ShapeUnknown     ShapeType = "unknown"
)

// SurfaceTexture classifies the product surface detected by the analyzer.
type SurfaceTexture string

const (
	TextureGlossy   SurfaceTexture = "glossy"
	TextureMatte    SurfaceTexture = "matte"
	TextureMetallic SurfaceTexture = "metallic"
	TextureRough    SurfaceTexture = "rough"
	TextureSmooth   SurfaceTexture = "smooth"
	TextureUnknown  SurfaceTexture = "unknown"
)

// ImageAnalysis is the record produced by the vision capability. It feeds
// every downstream stage.
type ImageAnalysis struct {
	Category   string         `json:"category"`
	Colors     ColorInfo      `json:"colors"`
	Shape      ShapeInfo      `json:"shape"`
	Texture    SurfaceTexture `json:"texture"`
	Confidence float64        `json:"confidence"`
}

// ColorInfo describes the detected color palette.
type ColorInfo struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
	Palette   []string `json:"palette,omitempty"`
}

// ShapeInfo describes the detected product shape.
type ShapeInfo struct {
	Type       ShapeType          `json:"type"`
	Dimensions RelativeDimensions `json:"dimensions"`
}

// RelativeDimensions are unitless proportions of the product.
type RelativeDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// PackageDesign is one generated package variation. The image payload is kept
// out of JSON; it is served through the download bundle.
type PackageDesign struct {
	VariationType string `json:"variation_type"`
	Style         string `json:"style"`
	Template      string `json:"template"`
	Prompt        string `json:"prompt,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	ImageData     []byte `json:"-"`
}

// AdImage is one generated ad creative sized for a platform.
type AdImage struct {
	Platform      string `json:"platform"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	ImageData     []byte `json:"-"`
}

// TextBundle aggregates the three text sub-generations.
type TextBundle struct {
	Description *DescriptionText `json:"description,omitempty"`
	Catchcopy   *CatchcopyText   `json:"catchcopy,omitempty"`
	SEO         *SEOText         `json:"seo,omitempty"`
}

// DescriptionText is the product description sub-bundle.
type DescriptionText struct {
	Long    string   `json:"long"`
	Short   string   `json:"short"`
	Bullets []string `json:"bullets,omitempty"`
}

// CatchcopyText is the catchcopy sub-bundle.
type CatchcopyText struct {
	Main       string   `json:"main"`
	Variations []string `json:"variations,omitempty"`
}

// SEOText is the SEO sub-bundle.
type SEOText struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ProgressEvent carries one state change of one job. Events reflect
// post-transition state.
type ProgressEvent struct {
	JobID     string                    `json:"job_id"`
	Kind      EventKind                 `json:"kind"`
	Status    JobStatus                 `json:"status"`
	Progress  map[StageName]StageStatus `json:"progress"`
	Result    *Result                   `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// ProgressCallback receives progress events for one subscription. Callbacks
// for a single subscription are serialized.
type ProgressCallback func(ProgressEvent)

// UnsubscribeFunc detaches a subscription. After it returns no further
// callbacks begin; a callback already running may finish. It must not be
// called from inside the callback itself.
type UnsubscribeFunc func()

// SubmitResult is the synchronous response to Submit.
type SubmitResult struct {
	JobID            string    `json:"job_id"`
	Status           JobStatus `json:"status"`
	EstimatedSeconds int       `json:"estimated_seconds"`
}

// SystemStatus is a point-in-time view of orchestrator load.
type SystemStatus struct {
	ActiveCount   int `json:"active_count"`
	MaxConcurrent int `json:"max_concurrent"`
	TotalJobs     int `json:"total_jobs"`
}

// newProgressMap builds the initial progress map for the given options.
// Stages the options skip are marked Skipped at creation and never change.
func newProgressMap(opts Options) map[StageName]StageStatus {
	m := map[StageName]StageStatus{
		StageAnalysis: StagePending,
		StagePackages: StagePending,
		StageAds:      StagePending,
		StageTexts:    StagePending,
	}
	if opts.SkipPackages {
		m[StagePackages] = StageSkipped
	}
	if opts.SkipAds {
		m[StageAds] = StageSkipped
	}
	if opts.SkipTexts {
		m[StageTexts] = StageSkipped
	}
	return m
}
