// Package mats - Bridges between gocv Mats and Go images.
package mats

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"go.uber.org/multierr"
)

// Decode decodes an encoded image (JPEG, PNG, ...) with OpenCV and returns
// it as a Go image.
//
// Arguments:
//   - data: The encoded bytes.
//
// Returns:
//   - image.Image: The decoded image, owned by the caller.
//   - error: An error if OpenCV cannot decode the payload.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(err, "imdecode failed")
	}
	return toImage(mat)
}

// Read loads an image file with OpenCV.
func Read(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	img, err := toImage(mat)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return img, nil
}

// toImage converts mat to a Go image and closes it.
func toImage(mat gocv.Mat) (img image.Image, err error) {
	defer func() {
		err = multierr.Append(err, mat.Close())
	}()

	if mat.Empty() {
		return nil, errors.New("decoded mat is empty")
	}
	img, err = mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mat to image")
	}
	return img, nil
}
