package images

import (
	"bytes"
	"image"
)

// Image is an encoded image with its format and dimensions.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// EncodeImage encodes img into a new Image.
//
// Arguments:
//   - img: The image to encode.
//   - format: The target format.
//
// Returns:
//   - *Image: The encoded image.
//   - error: An error if encoding fails.
func EncodeImage(img image.Image, format ImageFormat) (*Image, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, err
	}
	size := img.Bounds().Size()
	return &Image{Format: format, Data: buf.Bytes(), Width: size.X, Height: size.Y}, nil
}
