// Package imaging resizes generated creatives to platform canonical
// dimensions.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Resize scales src to exactly width by height, center-cropping first when
// the aspect ratios differ, and re-encodes the result as PNG.
func Resize(src []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	cropped := centerCrop(img, width, height)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// centerCrop trims img to the target aspect ratio around its center. Aspect
// ratios are compared by cross-multiplication to stay in integers.
func centerCrop(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	cropW, cropH := srcW, srcH
	if srcW*height > width*srcH {
		// Wider than the target: trim the sides.
		cropW = srcH * width / height
	} else if srcW*height < width*srcH {
		// Taller than the target: trim top and bottom.
		cropH = srcW * height / width
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}

	x0 := b.Min.X + (srcW-cropW)/2
	y0 := b.Min.Y + (srcH-cropH)/2

	rect := image.Rect(0, 0, cropW, cropH)
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, img, image.Point{X: x0, Y: y0}, draw.Src)
	return out
}
