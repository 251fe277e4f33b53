package stream

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/images/mats"
)

// ErrDecodeFailure marks a payload that could not be decoded as an image.
var ErrDecodeFailure = errors.New("stream: frame decode failure")

// DefaultFrameSize is the size stream frames are resized to before detection.
var DefaultFrameSize = image.Point{X: 640, Y: 480}

// Decoder turns an extracted payload into an image.
type Decoder interface {
	Decode(payload []byte) (image.Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(payload []byte) (image.Image, error)

// Decode calls f(payload).
func (f DecoderFunc) Decode(payload []byte) (image.Image, error) {
	return f(payload)
}

// DecoderBackend names a Decoder implementation.
type DecoderBackend string

const (
	// DecoderImaging decodes with the pure Go image decoders.
	DecoderImaging DecoderBackend = "imaging"
	// DecoderOpenCV decodes with OpenCV.
	DecoderOpenCV DecoderBackend = "opencv"
)

// NewDecoder returns the decoder for backend. Decoded frames are resized to
// size unless a dimension is zero.
//
// Arguments:
//   - backend: DecoderImaging or DecoderOpenCV.
//   - size: The output frame size.
//
// Returns:
//   - Decoder: The decoder.
//   - error: An error if backend is unknown.
func NewDecoder(backend DecoderBackend, size image.Point) (Decoder, error) {
	switch backend {
	case DecoderImaging, "":
		return ImageDecoder{Size: size}, nil
	case DecoderOpenCV:
		return CVDecoder{Size: size}, nil
	default:
		return nil, errors.Errorf("unknown decoder backend %q", backend)
	}
}

// ImageDecoder decodes payloads with imaging.Decode.
type ImageDecoder struct {
	Size image.Point
}

// Decode decodes and resizes payload.
func (d ImageDecoder) Decode(payload []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(ErrDecodeFailure, "%d byte payload: %v", len(payload), err)
	}
	return images.Fit(img, d.Size.X, d.Size.Y), nil
}

// CVDecoder decodes payloads with OpenCV.
type CVDecoder struct {
	Size image.Point
}

// Decode decodes and resizes payload.
func (d CVDecoder) Decode(payload []byte) (image.Image, error) {
	img, err := mats.Decode(payload)
	if err != nil {
		return nil, errors.Wrapf(ErrDecodeFailure, "%d byte payload: %v", len(payload), err)
	}
	return images.Fit(img, d.Size.X, d.Size.Y), nil
}
