// Package recognition - Text recognition over detected regions.
package recognition

import (
	"context"
	"image"
	"strings"

	"github.com/pkg/errors"
)

// DefaultThreshold is the minimum line confidence kept by Filter.
const DefaultThreshold = 0.5

// Line is one recognized line of text.
type Line struct {
	Text string `json:"text"`
	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Recognizer reads text from an image region.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Line, error)
}

// Filter returns the lines with confidence strictly above threshold and
// non-empty text, with surrounding whitespace trimmed.
//
// Arguments:
//   - lines: The recognized lines.
//   - threshold: The exclusive confidence floor.
//
// Returns:
//   - []Line: A new slice; lines is not modified.
func Filter(lines []Line, threshold float64) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" || l.Confidence <= threshold {
			continue
		}
		out = append(out, Line{Text: text, Confidence: l.Confidence})
	}
	return out
}

// RecognizeAll runs r over every region in order and filters each result.
//
// Arguments:
//   - ctx: Checked between regions.
//   - r: The recognizer.
//   - regions: The cropped regions.
//   - threshold: Passed to Filter.
//
// Returns:
//   - [][]Line: One entry per region, in region order.
//   - error: The first recognizer error, or ctx.Err().
func RecognizeAll(ctx context.Context, r Recognizer, regions []image.Image, threshold float64) ([][]Line, error) {
	out := make([][]Line, 0, len(regions))
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := r.Recognize(ctx, region)
		if err != nil {
			return nil, errors.Wrapf(err, "region %d", i)
		}
		out = append(out, Filter(lines, threshold))
	}
	return out, nil
}
