// Package postprocess - Postprocessing utilities for detector outputs.
package postprocess

import "github.com/nvr-ai/go-east/images"

// Candidates holds decoded boxes and their confidences as parallel lists.
// A candidate has no identity beyond its index.
type Candidates struct {
	// Boxes are in detector-input pixel space.
	Boxes []images.Rect
	// Scores holds the confidence of Boxes[i] at index i.
	Scores []float32
}

// NewCandidates returns empty, non-nil lists with room for n entries.
func NewCandidates(n int) Candidates {
	return Candidates{
		Boxes:  make([]images.Rect, 0, n),
		Scores: make([]float32, 0, n),
	}
}

// Append adds one candidate.
func (c *Candidates) Append(box images.Rect, score float32) {
	c.Boxes = append(c.Boxes, box)
	c.Scores = append(c.Scores, score)
}

// Len returns the number of complete candidates.
func (c Candidates) Len() int {
	return min(len(c.Boxes), len(c.Scores))
}
