package inference

import (
	"context"
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/models/model"
)

// DNNSession runs EAST through OpenCV's DNN module, which reads the frozen
// TensorFlow graph (frozen_east_text_detection.pb) directly.
type DNNSession struct {
	mu      sync.Mutex
	net     gocv.Net
	open    bool
	options east.Options
}

// NewDNNSession loads the network at opts.Path.
//
// Arguments:
//   - opts: EAST options. The layout must be NCHW; Outputs name the layers
//     to fetch, scores first.
//
// Returns:
//   - *DNNSession: The session.
//   - error: An error if the model is missing or cannot be parsed.
func NewDNNSession(opts east.Options) (*DNNSession, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Layout != model.LayoutNCHW {
		return nil, errors.Errorf("opencv backend requires %s layout, got %s", model.LayoutNCHW, opts.Layout)
	}
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", opts.Path)
	}

	net := gocv.ReadNet(opts.Path, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load model: %s", opts.Path)
	}
	if err := multierr.Combine(
		net.SetPreferableBackend(gocv.NetBackendOpenCV),
		net.SetPreferableTarget(gocv.NetTargetCPU),
	); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "failed to configure network"), net.Close())
	}

	return &DNNSession{net: net, open: true, options: opts}, nil
}

// Options returns the model options the session was created with.
func (s *DNNSession) Options() east.Options {
	return s.options
}

// Infer feeds blob to the network and copies the two output layers.
func (s *DNNSession) Infer(ctx context.Context, blob *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, nil, err
	}
	data, err := checkBlob(blob, s.options)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, nil, errors.New("session is closed")
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	input, err := gocv.NewMatWithSizesFromBytes([]int{1, 3, s.options.InputSize.Y, s.options.InputSize.X}, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to wrap input blob")
	}
	defer input.Close()

	s.net.SetInput(input, "")
	outs := s.net.ForwardLayers(s.options.Outputs)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, nil, errors.Wrapf(east.ErrShapeMismatch, "want 2 output layers, got %d", len(outs))
	}

	scores, err := matToDense(outs[0])
	if err != nil {
		return nil, nil, errors.Wrap(err, "scores")
	}
	geometry, err := matToDense(outs[1])
	if err != nil {
		return nil, nil, errors.Wrap(err, "geometry")
	}
	return scores, geometry, nil
}

// matToDense copies a float32 blob Mat into a Dense tensor of the same shape.
func matToDense(m gocv.Mat) (*tensor.Dense, error) {
	raw, err := m.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read output")
	}
	data := make([]float32, len(raw))
	copy(data, raw)

	dims := m.Size()
	total := 1
	for _, d := range dims {
		total *= d
	}
	if len(dims) == 0 || total != len(data) {
		return nil, errors.Wrapf(east.ErrShapeMismatch, "output dims %v do not cover %d values", dims, len(data))
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

// Close releases the network.
func (s *DNNSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	return s.net.Close()
}
