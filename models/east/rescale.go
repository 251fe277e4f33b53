package east

import (
	"image"

	"github.com/nvr-ai/go-east/images"
)

// Rescaler maps boxes from detector-input space back to the source frame.
type Rescaler struct {
	src    image.Point
	ratioW float64
	ratioH float64
}

// NewRescaler builds a Rescaler for a source of size src and a detector
// input of size input.
//
// Arguments:
//   - src: The source frame size (width, height).
//   - input: The detector input size, 320x320 by default.
//
// Returns:
//   - Rescaler: Scales by src/input per axis.
func NewRescaler(src, input image.Point) Rescaler {
	r := Rescaler{src: src}
	if input.X > 0 {
		r.ratioW = float64(src.X) / float64(input.X)
	}
	if input.Y > 0 {
		r.ratioH = float64(src.Y) / float64(input.Y)
	}
	return r
}

// Rescale multiplies the box by the scale ratios, truncates toward zero and
// clamps every coordinate into [0,W)x[0,H). The returned rectangle always
// describes a valid, possibly empty, sub-region of the source frame.
func (r Rescaler) Rescale(box images.Rect) image.Rectangle {
	if r.src.X <= 0 || r.src.Y <= 0 {
		return image.Rectangle{}
	}

	maxX, maxY := r.src.X-1, r.src.Y-1
	x1 := images.Clamp(int(float64(box.X1)*r.ratioW), 0, maxX)
	y1 := images.Clamp(int(float64(box.Y1)*r.ratioH), 0, maxY)
	x2 := images.Clamp(int(float64(box.X2)*r.ratioW), 0, maxX)
	y2 := images.Clamp(int(float64(box.Y2)*r.ratioH), 0, maxY)

	return image.Rect(x1, y1, x2, y2)
}
