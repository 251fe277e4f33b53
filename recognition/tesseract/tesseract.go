//go:build cgo

package tesseract

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/recognition"
)

// Recognizer recognizes text with a Tesseract client. Calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a recognizer for the given languages.
//
// Arguments:
//   - languages: Tesseract language codes; empty means "eng".
//
// Returns:
//   - *Recognizer: The recognizer.
//   - error: An error if the client rejects the configuration.
func New(languages ...string) (*Recognizer, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to set tesseract languages")
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to set page segmentation mode")
	}
	return &Recognizer{client: client}, nil
}

// Recognize returns one line per text line Tesseract finds in img.
func (t *Recognizer) Recognize(ctx context.Context, img image.Image) ([]recognition.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := images.Encode(&buf, img, images.FormatPNG); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, errors.New("tesseract client is closed")
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "failed to set tesseract image")
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, errors.Wrap(err, "tesseract failed")
	}
	return toLines(boxes), nil
}

// toLines maps Tesseract boxes to lines, scaling confidence from 0-100 to 0-1.
func toLines(boxes []gosseract.BoundingBox) []recognition.Line {
	lines := make([]recognition.Line, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, recognition.Line{Text: b.Word, Confidence: b.Confidence / 100})
	}
	return lines
}

// Close releases the Tesseract client.
func (t *Recognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
