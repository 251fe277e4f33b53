package east

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/models/postprocess"
)

// DefaultScoreThreshold is the minimum cell score kept by Decode.
const DefaultScoreThreshold = 0.5

// Decode turns EAST score and geometry maps into candidate boxes.
//
// Cells are visited row-major. A cell whose score is below threshold is
// skipped. Otherwise its four side distances are rotated by the cell angle
// around the cell origin (col*Stride, row*Stride) and the box corners are
// truncated toward zero. Degenerate boxes are kept.
//
// Arguments:
//   - scores: A [1,1,R,C] float32 tensor.
//   - geometry: A [1,5,R,C] float32 tensor (d0..d3, angle).
//   - threshold: The minimum score of a kept cell.
//
// Returns:
//   - postprocess.Candidates: Boxes in detector-input space and their scores.
//     Both lists are empty, not nil, when nothing passes the threshold.
//   - error: ErrShapeMismatch when the tensors are malformed.
func Decode(scores, geometry *tensor.Dense, threshold float32) (postprocess.Candidates, error) {
	rows, cols, err := CheckShapes(scores, geometry)
	if err != nil {
		return postprocess.Candidates{}, err
	}

	sd := scores.Data().([]float32)
	gd := geometry.Data().([]float32)
	plane := rows * cols

	top := gd[0*plane : 1*plane]
	right := gd[1*plane : 2*plane]
	bottom := gd[2*plane : 3*plane]
	left := gd[3*plane : 4*plane]
	angles := gd[4*plane : 5*plane]

	out := postprocess.NewCandidates(0)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := y*cols + x
			score := sd[i]
			if score < threshold {
				continue
			}

			offsetX := float32(x * Stride)
			offsetY := float32(y * Stride)

			sin, cos := math32.Sincos(angles[i])
			h := top[i] + bottom[i]
			w := right[i] + left[i]

			endX := int(offsetX + cos*right[i] + sin*bottom[i])
			endY := int(offsetY - sin*right[i] + cos*bottom[i])
			startX := int(float32(endX) - w)
			startY := int(float32(endY) - h)

			out.Append(images.Rect{X1: startX, Y1: startY, X2: endX, Y2: endY}, score)
		}
	}

	return out, nil
}
