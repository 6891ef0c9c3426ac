package ai

import (
	"fmt"
	"strings"

	"promogen/internal/generation"
)

const analysisSystem = "You are a product image analyst for a package design service. " +
	"Respond with a single JSON object and nothing else."

const textSystem = "You are a marketing copywriter for consumer products. " +
	"Respond with a single JSON object and nothing else."

const analysisPrompt = `Analyze the product shown in the image and respond with exactly this JSON shape:
{
  "category": "lowercase product category, e.g. beverage, cosmetics, snack",
  "colors": {"primary": "#RRGGBB", "secondary": ["#RRGGBB"], "palette": ["#RRGGBB"]},
  "shape": {"type": "rectangular|cylindrical|spherical|irregular", "dimensions": {"width": 1.0, "height": 1.0, "depth": 1.0}},
  "texture": "glossy|matte|metallic|rough|smooth",
  "confidence": 0.95
}
Dimensions are relative proportions with the smallest side normalized to 1.0.
Confidence is your overall certainty between 0 and 1.`

// productContext renders the shared context lines every text prompt opens
// with.
func productContext(tc generation.TextContext) string {
	var b strings.Builder
	product := tc.ProductName
	if product == "" && tc.Analysis != nil {
		product = tc.Analysis.Category
	}
	if product == "" {
		product = "the product"
	}
	fmt.Fprintf(&b, "Product: %s.", product)
	if tc.BrandName != "" {
		fmt.Fprintf(&b, " Brand: %s.", tc.BrandName)
	}
	if tc.Analysis != nil {
		if tc.Analysis.Category != "" {
			fmt.Fprintf(&b, " Category: %s.", tc.Analysis.Category)
		}
		if tc.Analysis.Colors.Primary != "" {
			fmt.Fprintf(&b, " Primary brand color: %s.", tc.Analysis.Colors.Primary)
		}
		if tc.Analysis.Texture != "" && tc.Analysis.Texture != generation.TextureUnknown {
			fmt.Fprintf(&b, " Surface: %s.", tc.Analysis.Texture)
		}
	}
	fmt.Fprintf(&b, " Tone: %s. Language: %s.", tc.Tone, tc.Language)
	return b.String()
}

func descriptionPrompt(tc generation.TextContext) string {
	return productContext(tc) + `
Write a product description and respond with exactly this JSON shape:
{
  "long": "150-250 word product description",
  "short": "one to two sentence summary",
  "bullets": ["3 to 5 selling points"]
}
Write all text in the requested language and tone.`
}

func catchcopyPrompt(tc generation.TextContext) string {
	return productContext(tc) + `
Write advertising catchcopy and respond with exactly this JSON shape:
{
  "main": "one memorable headline under 10 words",
  "variations": ["2 to 4 alternative headlines"]
}
Write all text in the requested language and tone.`
}

func seoPrompt(tc generation.TextContext) string {
	return productContext(tc) + `
Write search-engine metadata and respond with exactly this JSON shape:
{
  "title": "SEO page title under 60 characters",
  "description": "meta description under 160 characters",
  "keywords": ["5 to 10 search keywords"]
}
Write all text in the requested language.`
}
