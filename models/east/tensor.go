package east

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when the inference output does not have the
// rank, channel count or element type EAST decoding requires.
var ErrShapeMismatch = errors.New("east: tensor shape mismatch")

const (
	scoreChannels    = 1
	geometryChannels = 5
)

// NewScores wraps data as a [1,1,rows,cols] float32 tensor.
func NewScores(rows, cols int, data []float32) (*tensor.Dense, error) {
	return newMap(scoreChannels, rows, cols, data)
}

// NewGeometry wraps data as a [1,5,rows,cols] float32 tensor. Channels are
// d0 (top), d1 (right), d2 (bottom), d3 (left) and the rotation angle.
func NewGeometry(rows, cols int, data []float32) (*tensor.Dense, error) {
	return newMap(geometryChannels, rows, cols, data)
}

func newMap(channels, rows, cols int, data []float32) (*tensor.Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "grid must be positive, got %dx%d", rows, cols)
	}
	if want := channels * rows * cols; len(data) != want {
		return nil, errors.Wrapf(ErrShapeMismatch, "want %d elements, got %d", want, len(data))
	}
	return tensor.New(tensor.WithShape(1, channels, rows, cols), tensor.WithBacking(data)), nil
}

// CheckShapes validates a scores/geometry pair and returns the grid size.
//
// Arguments:
//   - scores: Expected shape [1,1,R,C].
//   - geometry: Expected shape [1,5,R,C].
//
// Returns:
//   - rows, cols: The grid dimensions R and C.
//   - error: ErrShapeMismatch wrapped with the offending detail.
func CheckShapes(scores, geometry *tensor.Dense) (rows, cols int, err error) {
	if scores == nil || geometry == nil {
		return 0, 0, errors.Wrap(ErrShapeMismatch, "missing output tensor")
	}

	ss, gs := scores.Shape(), geometry.Shape()
	if len(ss) != 4 || len(gs) != 4 {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "want rank 4, got scores %v geometry %v", ss, gs)
	}
	if ss[0] != 1 || gs[0] != 1 {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "want batch 1, got scores %v geometry %v", ss, gs)
	}
	if ss[1] != scoreChannels {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "scores want %d channel, got %v", scoreChannels, ss)
	}
	if gs[1] != geometryChannels {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "geometry want %d channels, got %v", geometryChannels, gs)
	}
	if ss[2] != gs[2] || ss[3] != gs[3] {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "grid differs: scores %v geometry %v", ss, gs)
	}

	rows, cols = ss[2], ss[3]
	if _, err := float32Data(scores, rows*cols); err != nil {
		return 0, 0, errors.Wrap(err, "scores")
	}
	if _, err := float32Data(geometry, geometryChannels*rows*cols); err != nil {
		return 0, 0, errors.Wrap(err, "geometry")
	}
	return rows, cols, nil
}

// float32Data returns the flat backing slice when it is float32 and has the
// expected element count.
func float32Data(t *tensor.Dense, n int) ([]float32, error) {
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrShapeMismatch, "want float32 data, got %T", t.Data())
	}
	if len(data) != n {
		return nil, errors.Wrapf(ErrShapeMismatch, "want %d elements, got %d", n, len(data))
	}
	return data, nil
}

// ToNCHW converts an NHWC tensor to a materialized NCHW copy.
func ToNCHW(t *tensor.Dense) (*tensor.Dense, error) {
	if len(t.Shape()) != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "want rank 4, got %v", t.Shape())
	}
	out, err := tensor.Transpose(t, 0, 3, 1, 2)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transpose to NCHW")
	}
	return out.(*tensor.Dense), nil
}

// ToNHWC converts an NCHW tensor to a materialized NHWC copy.
func ToNHWC(t *tensor.Dense) (*tensor.Dense, error) {
	if len(t.Shape()) != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "want rank 4, got %v", t.Shape())
	}
	out, err := tensor.Transpose(t, 0, 2, 3, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transpose to NHWC")
	}
	return out.(*tensor.Dense), nil
}
