package generation

import (
	"fmt"
	"strings"
)

// Package template identifiers.
const (
	TemplateBox    = "box"
	TemplateBottle = "bottle"
	TemplateCan    = "can"
	TemplateTube   = "tube"
	TemplateJar    = "jar"
	TemplatePouch  = "pouch"
)

// autoSelectTemplate picks a package template from the detected category and
// shape when the submission did not name one.
func autoSelectTemplate(analysis *ImageAnalysis) string {
	if analysis == nil {
		return TemplateBox
	}
	category := strings.ToLower(analysis.Category)
	switch analysis.Shape.Type {
	case ShapeCylindrical:
		switch {
		case strings.Contains(category, "beverage"), strings.Contains(category, "drink"):
			return TemplateBottle
		case strings.Contains(category, "cosmetic"), strings.Contains(category, "skincare"):
			return TemplateTube
		case strings.Contains(category, "food"), strings.Contains(category, "snack"):
			return TemplateCan
		default:
			return TemplateBottle
		}
	case ShapeSpherical:
		return TemplateJar
	case ShapeRectangular:
		if strings.Contains(category, "snack") || strings.Contains(category, "food") {
			return TemplatePouch
		}
		return TemplateBox
	default:
		return TemplateBox
	}
}

// packageStyle returns the style and unique variation type for slot i. The
// base styles cycle; later cycles carry a numeric suffix so the variation
// type stays unique across slots.
func packageStyle(i int) (style, variationType string) {
	styles := [...]string{StyleMinimalist, StyleVibrant, StylePremium}
	style = styles[i%len(styles)]
	variationType = style
	if cycle := i/len(styles) + 1; cycle > 1 {
		variationType = fmt.Sprintf("%s-%d", style, cycle)
	}
	return style, variationType
}

// productLabel names the product for prompt text, falling back to the
// detected category when the submission carried no product name.
func productLabel(opts Options, analysis *ImageAnalysis) string {
	if opts.ProductName != "" {
		return opts.ProductName
	}
	if analysis != nil && analysis.Category != "" {
		return analysis.Category
	}
	return "the product"
}

// buildPackagePrompt composes the synthesis prompt for one package design
// variation from the analysis and submission options.
func buildPackagePrompt(opts Options, analysis *ImageAnalysis, style, template string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional product package design, %s style, %s format.", style, template)
	fmt.Fprintf(&b, " Product: %s.", productLabel(opts, analysis))
	if opts.BrandName != "" {
		fmt.Fprintf(&b, " Brand name %q clearly visible on the package.", opts.BrandName)
	}
	if analysis != nil {
		if analysis.Colors.Primary != "" {
			fmt.Fprintf(&b, " Primary color %s", analysis.Colors.Primary)
			if len(analysis.Colors.Palette) > 0 {
				fmt.Fprintf(&b, ", supporting palette %s", strings.Join(analysis.Colors.Palette, ", "))
			}
			b.WriteString(".")
		}
		if analysis.Texture != "" && analysis.Texture != TextureUnknown {
			fmt.Fprintf(&b, " %s surface finish.", analysis.Texture)
		}
	}
	switch style {
	case StyleMinimalist:
		b.WriteString(" Clean lines, generous negative space, restrained typography.")
	case StyleVibrant:
		b.WriteString(" Bold saturated colors, energetic composition, eye-catching graphics.")
	case StylePremium:
		b.WriteString(" Luxurious materials, elegant serif typography, refined details.")
	}
	b.WriteString(" Studio lighting, centered composition, plain background, no watermarks.")
	return b.String()
}

// buildAdPrompt composes the synthesis prompt for one platform-sized ad
// creative.
func buildAdPrompt(opts Options, analysis *ImageAnalysis, spec PlatformSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Advertising image for %s", productLabel(opts, analysis))
	if opts.BrandName != "" {
		fmt.Fprintf(&b, " by %s", opts.BrandName)
	}
	fmt.Fprintf(&b, ", composed for %s at %dx%d.", spec.Name, spec.Width, spec.Height)
	if analysis != nil && analysis.Colors.Primary != "" {
		fmt.Fprintf(&b, " Brand color %s dominant.", analysis.Colors.Primary)
	}
	b.WriteString(" Product hero shot, room for headline copy, high contrast, no embedded text, no watermarks.")
	return b.String()
}
