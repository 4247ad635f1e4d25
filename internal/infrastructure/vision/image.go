// Package vision prepares signature images for comparison: it decodes scans,
// crops the signature region, normalizes it to a fixed square and scores two
// embeddings against each other.
package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // scanned cheques
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // bank scanners commonly emit TIFF

	"github.com/iho/chequer/internal/domain"
)

// DefaultSize is the edge of the normalized signature square.
const DefaultSize = 128

// Decode decodes a PNG, JPEG or TIFF image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInvalidImage)
	}
	return img, nil
}

// Crop cuts the fractional box out of img, scaled by the image's real dimensions.
func Crop(img image.Image, box domain.BoundingBox) (image.Image, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rect := image.Rect(
		b.Min.X+int(box.Left*w),
		b.Min.Y+int(box.Top*h),
		b.Min.X+int((box.Left+box.Width)*w+0.5),
		b.Min.Y+int((box.Top+box.Height)*h+0.5),
	).Intersect(b)
	if rect.Empty() {
		return nil, domain.ErrInvalidBoundingBox
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// Normalize converts img to grayscale and scales the whole of it to a size x size
// square. Nothing is trimmed: where the ink sits inside the image is part of the
// signature.
func Normalize(img image.Image, size int) *image.Gray {
	if size <= 0 {
		size = DefaultSize
	}

	gray := image.NewGray(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Over, nil)
	return dst
}
