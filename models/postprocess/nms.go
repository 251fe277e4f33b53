// Package postprocess - provides Non-Maximum Suppression for detector candidates.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-east/images"
)

const (
	// DefaultIoUThreshold is the overlap above which a lower-scored box is suppressed.
	DefaultIoUThreshold = 0.4
	// DefaultScoreThreshold is the minimum score a candidate needs to enter suppression.
	DefaultScoreThreshold = 0.5
	// DefaultMaxCandidates bounds the quadratic suppression pass.
	DefaultMaxCandidates = 4096
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap threshold for suppression. Boxes with IoU
	// strictly greater than this are suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ScoreThreshold drops candidates scoring below it before suppression.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// MaxCandidates keeps only the best N candidates after sorting. Zero
	// disables the cap.
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`
}

// DefaultNMSConfig returns the thresholds used for EAST text boxes.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold:   DefaultIoUThreshold,
		ScoreThreshold: DefaultScoreThreshold,
		MaxCandidates:  DefaultMaxCandidates,
	}
}

// SuppressIndices runs greedy Non-Maximum Suppression over c and returns the
// indices of the kept candidates, highest score first.
//
// Candidates are ordered by descending score with a stable sort, so among
// equal scores the one with the lower index is considered first and wins.
// Each kept box suppresses every remaining box whose IoU with it exceeds
// config.IoUThreshold.
//
// Arguments:
//   - c: Parallel box and score lists. Extra entries in the longer list are ignored.
//   - config: Thresholds and candidate cap.
//
// Returns:
//   - []int: Indices into c. Empty, not nil, when nothing is kept.
func SuppressIndices(c Candidates, config NMSConfig) []int {
	n := c.Len()
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if c.Scores[i] >= config.ScoreThreshold {
			order = append(order, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return c.Scores[order[a]] > c.Scores[order[b]]
	})
	if config.MaxCandidates > 0 && len(order) > config.MaxCandidates {
		order = order[:config.MaxCandidates]
	}

	kept := make([]int, 0, len(order))
	used := make([]bool, len(order))
	for i, idx := range order {
		if used[i] {
			continue
		}
		kept = append(kept, idx)
		anchor := c.Boxes[idx]

		for j := i + 1; j < len(order); j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor, c.Boxes[order[j]]) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept
}
