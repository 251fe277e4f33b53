package east

import (
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/models/model"
)

// Blob resizes img to size and converts it into a float32 input tensor in
// RGB order with Mean subtracted and no further scaling.
//
// Arguments:
//   - img: The source frame, any size.
//   - size: The detector input size.
//   - layout: LayoutNCHW yields [1,3,H,W], LayoutNHWC yields [1,H,W,3].
//
// Returns:
//   - *tensor.Dense: The input blob.
//   - error: An error when the size or layout is invalid.
func Blob(img image.Image, size image.Point, layout model.Layout) (*tensor.Dense, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid blob size %v", size)
	}
	if !layout.Valid() {
		return nil, errors.Errorf("unknown tensor layout %q", layout)
	}

	resized := images.ResizeExact(img, size.X, size.Y)
	b := resized.Bounds()
	w, h := size.X, size.Y
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl := rgbAt(resized, b.Min.X+x, b.Min.Y+y)
			px := [3]float32{r - Mean[0], g - Mean[1], bl - Mean[2]}
			i := y*w + x
			if layout == model.LayoutNCHW {
				data[i] = px[0]
				data[plane+i] = px[1]
				data[2*plane+i] = px[2]
				continue
			}
			copy(data[3*i:3*i+3], px[:])
		}
	}

	shape := []int{1, 3, h, w}
	if layout == model.LayoutNHWC {
		shape = []int{1, h, w, 3}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}

// rgbAt returns 8-bit channel values as float32.
func rgbAt(img image.Image, x, y int) (r, g, b float32) {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return float32(rgba.Pix[i]), float32(rgba.Pix[i+1]), float32(rgba.Pix[i+2])
	}
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return float32(cr >> 8), float32(cg >> 8), float32(cb >> 8)
}
