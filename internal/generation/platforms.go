package generation

import (
	"sort"
)

// PlatformSpec describes one supported ad platform: its canonical creative
// dimensions and the synthesis size class closest to its aspect ratio.
type PlatformSpec struct {
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SizeClass ImageSize `json:"size_class"`
}

var adPlatforms = map[string]PlatformSpec{
	"instagram-square": {Name: "instagram-square", Width: 1080, Height: 1080, SizeClass: ImageSizeSquare},
	"instagram-story":  {Name: "instagram-story", Width: 1080, Height: 1920, SizeClass: ImageSizePortrait},
	"twitter-card":     {Name: "twitter-card", Width: 1200, Height: 628, SizeClass: ImageSizeLandscape},
	"facebook-feed":    {Name: "facebook-feed", Width: 1200, Height: 628, SizeClass: ImageSizeLandscape},
	"linkedin-feed":    {Name: "linkedin-feed", Width: 1200, Height: 627, SizeClass: ImageSizeLandscape},

	"web-banner-medium-rectangle": {Name: "web-banner-medium-rectangle", Width: 300, Height: 250, SizeClass: ImageSizeSquare},
	"web-banner-leaderboard":      {Name: "web-banner-leaderboard", Width: 728, Height: 90, SizeClass: ImageSizeLandscape},
}

// DefaultAdPlatforms returns the platform list used when the submission does
// not name any.
func DefaultAdPlatforms() []string {
	return []string{
		"instagram-square",
		"twitter-card",
		"facebook-feed",
		"web-banner-medium-rectangle",
	}
}

// LookupPlatform returns the spec for a platform name.
func LookupPlatform(name string) (PlatformSpec, bool) {
	spec, ok := adPlatforms[name]
	return spec, ok
}

// SupportedPlatforms returns all known platform names, sorted.
func SupportedPlatforms() []string {
	names := make([]string, 0, len(adPlatforms))
	for name := range adPlatforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
