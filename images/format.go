package images

import (
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageFormat represents supported encoded image formats.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// DefaultJPEGQuality is the quality used when encoding JPEG frames.
const DefaultJPEGQuality = 85

// ParseFormat maps a format name or file extension to an ImageFormat.
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpg", "jpeg", "":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", errors.Errorf("unsupported image format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f ImageFormat) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Encode writes img to w in the given format.
//
// Arguments:
//   - w: The destination writer.
//   - img: The image to encode.
//   - format: FormatJPEG or FormatPNG.
//
// Returns:
//   - error: An error if the format is unknown or encoding fails.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	var err error
	switch format {
	case FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(DefaultJPEGQuality))
	case FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	default:
		return errors.Errorf("unsupported image format %q", format)
	}
	return errors.Wrapf(err, "failed to encode %s", format)
}
