// Package images - Resize, crop and load helpers backed by imaging and nfnt/resize.
package images

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// AnnotationColor is the stroke color used for detection rectangles.
var AnnotationColor = color.NRGBA{R: 0, G: 255, B: 0, A: 255}

// Load decodes a still image from disk, honoring EXIF orientation.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be opened or decoded.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}
	return img, nil
}

// ResizeExact scales img to exactly width x height with bilinear
// interpolation, ignoring the aspect ratio.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//
// Returns:
//   - image.Image: The resized image.
func ResizeExact(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// Fit scales img to width x height when both are positive, otherwise returns
// img unchanged. Used for normalizing stream frames.
func Fit(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}

// Crop copies the pixels of rect out of img. The rectangle is expressed
// relative to the image origin, so sub-images are handled transparently.
// The result is an owned buffer with origin (0,0); an empty intersection
// yields an empty image.
func Crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect.Add(img.Bounds().Min))
}

// Clone returns an owned NRGBA copy of img with origin (0,0).
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// DrawRectangle strokes the outline of r onto dc with the given line width.
// Even widths on integer coordinates cover whole pixels, so the stroke color
// is exact.
func DrawRectangle(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// Annotate returns a copy of img with every rectangle drawn on it.
func Annotate(img image.Image, rects []image.Rectangle) *image.NRGBA {
	dc := gg.NewContextForImage(Clone(img))
	for _, r := range rects {
		DrawRectangle(dc, r.Canon(), AnnotationColor, 2)
	}
	return imaging.Clone(dc.Image())
}
