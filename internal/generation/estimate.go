package generation

// Closed-form duration estimate, in seconds, per stage.
const (
	estimateBaseSeconds       = 10
	estimatePerVariationSecs  = 15
	estimatePerAdPlatformSecs = 10
	estimateTextsSeconds      = 10
)

// EstimateSeconds returns the closed-form completion estimate for the given
// options: a fixed analysis cost plus a per-output cost for every stage that
// is not skipped.
func EstimateSeconds(opts Options) int {
	estimate := estimateBaseSeconds
	if !opts.SkipPackages {
		estimate += opts.PackageVariations * estimatePerVariationSecs
	}
	if !opts.SkipAds {
		estimate += len(opts.AdPlatforms) * estimatePerAdPlatformSecs
	}
	if !opts.SkipTexts {
		estimate += estimateTextsSeconds
	}
	return estimate
}
