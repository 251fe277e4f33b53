//go:build !cgo

package tesseract

import (
	"context"
	"image"

	"github.com/nvr-ai/go-east/recognition"
)

// Recognizer is unavailable without cgo.
type Recognizer struct{}

// New always fails with ErrUnavailable.
func New(...string) (*Recognizer, error) {
	return nil, ErrUnavailable
}

// Recognize always fails with ErrUnavailable.
func (*Recognizer) Recognize(context.Context, image.Image) ([]recognition.Line, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (*Recognizer) Close() error {
	return nil
}
