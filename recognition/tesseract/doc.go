// Package tesseract recognizes text lines in detected regions with Tesseract.
//
// With cgo enabled it binds libtesseract through gosseract; the language data
// for every configured language must be installed (tesseract-ocr-eng on
// Debian/Ubuntu). Without cgo, New returns ErrUnavailable.
package tesseract

import "github.com/pkg/errors"

// ErrUnavailable is returned by New when the binary was built without cgo.
var ErrUnavailable = errors.New("tesseract recognition requires cgo")
