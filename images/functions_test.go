package images

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestResizeExact(t *testing.T) {
	src := checkerboard(64, 48)

	out := ResizeExact(src, 32, 32)
	assert.Equal(t, image.Pt(32, 32), out.Bounds().Size())

	same := ResizeExact(src, 64, 48)
	assert.Same(t, src, same)
}

func TestFit(t *testing.T) {
	src := checkerboard(100, 50)

	assert.Equal(t, image.Pt(640, 480), Fit(src, 640, 480).Bounds().Size())
	assert.Same(t, src, Fit(src, 0, 0))
}

func TestCrop(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	src.Set(5, 5, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		name string
		img  image.Image
		rect image.Rectangle
		size image.Point
	}{
		{name: "inside", img: src, rect: image.Rect(5, 5, 10, 8), size: image.Pt(5, 3)},
		{name: "clipped", img: src, rect: image.Rect(15, 15, 40, 40), size: image.Pt(5, 5)},
		{name: "outside", img: src, rect: image.Rect(30, 30, 40, 40), size: image.Pt(0, 0)},
		{name: "sub image origin", img: src.SubImage(image.Rect(5, 5, 20, 20)), rect: image.Rect(0, 0, 2, 2), size: image.Pt(2, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Crop(tt.img, tt.rect)
			require.NotNil(t, out)
			assert.Equal(t, tt.size, out.Bounds().Size())
		})
	}

	out := Crop(src.SubImage(image.Rect(5, 5, 20, 20)), image.Rect(0, 0, 1, 1))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(0, 0))
}

func TestAnnotate(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))

	out := Annotate(src, []image.Rectangle{image.Rect(2, 2, 10, 10), image.Rect(15, 15, 40, 40)})

	assert.Equal(t, AnnotationColor, out.NRGBAAt(2, 2))
	assert.Equal(t, AnnotationColor, out.NRGBAAt(9, 5))
	assert.Equal(t, AnnotationColor, out.NRGBAAt(1, 5), "stroke is centered on the edge")
	assert.Equal(t, AnnotationColor, out.NRGBAAt(10, 5))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(0, 5))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(3, 5))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(5, 5), "interior stays untouched")
	assert.Equal(t, AnnotationColor, out.NRGBAAt(15, 19))
	assert.Equal(t, color.NRGBA{}, src.NRGBAAt(2, 2), "source is not modified")
}

func TestAnnotate_SubImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 40)).SubImage(image.Rect(10, 10, 30, 30))

	out := Annotate(src, []image.Rectangle{image.Rect(4, 4, 12, 12)})

	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
	assert.Equal(t, AnnotationColor, out.NRGBAAt(4, 4))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(8, 8))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ImageFormat
		wantErr bool
	}{
		{in: "jpg", want: FormatJPEG},
		{in: ".JPEG", want: FormatJPEG},
		{in: "", want: FormatJPEG},
		{in: "png", want: FormatPNG},
		{in: "webp", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 30))

	for _, f := range []ImageFormat{FormatJPEG, FormatPNG} {
		enc, err := EncodeImage(src, f)
		require.NoError(t, err)
		assert.Equal(t, 40, enc.Width)
		assert.Equal(t, 30, enc.Height)
		assert.NotEmpty(t, enc.Data)

		decoded, err := imaging.Decode(bytes.NewReader(enc.Data))
		require.NoError(t, err)
		assert.Equal(t, image.Pt(40, 30), decoded.Bounds().Size())
	}
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())

	_, err := EncodeImage(src, ImageFormat("gif"))
	assert.Error(t, err)
}
