// Package inference - ONNX Runtime session for EAST.
package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/inference/providers"
	"github.com/nvr-ai/go-east/models/east"
	"github.com/nvr-ai/go-east/models/model"
)

// ONNXSession runs an ONNX export of EAST with preallocated tensors.
// Calls to Infer are serialized.
type ONNXSession struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	scores   *ort.Tensor[float32]
	geometry *ort.Tensor[float32]
	options  east.Options
}

// inputShape returns the blob shape for opts.
func inputShape(opts east.Options) []int64 {
	h, w := int64(opts.InputSize.Y), int64(opts.InputSize.X)
	if opts.Layout == model.LayoutNHWC {
		return []int64{1, h, w, 3}
	}
	return []int64{1, 3, h, w}
}

// outputShape returns the raw output shape for a map with channels channels.
func outputShape(opts east.Options, channels int64) []int64 {
	rows, cols := opts.OutputGrid()
	r, c := int64(rows), int64(cols)
	if opts.Layout == model.LayoutNHWC {
		return []int64{1, r, c, channels}
	}
	return []int64{1, channels, r, c}
}

// NewONNXSession loads the model at opts.Path.
//
// Arguments:
//   - opts: The EAST model options. Inputs and Outputs must match the graph.
//   - provider: The execution provider configuration.
//
// Returns:
//   - *ONNXSession: The session.
//   - error: An error if the runtime, tensors or session cannot be created.
func NewONNXSession(opts east.Options, provider providers.Config) (*ONNXSession, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := providers.InitializeEnvironment(providers.GetSharedLibPath(provider.SharedLibraryPath)); err != nil {
		return nil, err
	}

	s := &ONNXSession{options: opts}
	var err error
	if s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(inputShape(opts)...)); err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	if s.scores, err = ort.NewEmptyTensor[float32](ort.NewShape(outputShape(opts, 1)...)); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "error creating scores tensor"), s.Close())
	}
	if s.geometry, err = ort.NewEmptyTensor[float32](ort.NewShape(outputShape(opts, 5)...)); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "error creating geometry tensor"), s.Close())
	}

	options, err := providers.NewSessionOptions(provider)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	defer options.Destroy()

	s.session, err = ort.NewAdvancedSession(
		opts.Path,
		opts.Inputs,
		opts.Outputs,
		[]ort.ArbitraryTensor{s.input},
		[]ort.ArbitraryTensor{s.scores, s.geometry},
		options,
	)
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "error creating ORT session for %s", opts.Path), s.Close())
	}

	return s, nil
}

// Options returns the model options the session was created with.
func (s *ONNXSession) Options() east.Options {
	return s.options
}

// Infer runs the model on blob and returns NCHW copies of both outputs.
//
// Arguments:
//   - ctx: Checked before the (uninterruptible) run.
//   - blob: The input tensor, shaped for the model layout.
//
// Returns:
//   - scores, geometry: [1,1,R,C] and [1,5,R,C] tensors owned by the caller.
//   - error: An error if the blob is malformed or the run fails.
func (s *ONNXSession) Infer(ctx context.Context, blob *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, nil, err
	}
	data, err := checkBlob(blob, s.options)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, nil, errors.New("session is closed")
	}

	copy(s.input.GetData(), data)
	if err := s.session.Run(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run inference")
	}

	scores, err := s.output(s.scores)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scores")
	}
	geometry, err := s.output(s.geometry)
	if err != nil {
		return nil, nil, errors.Wrap(err, "geometry")
	}
	return scores, geometry, nil
}

// output copies an ORT output tensor into an NCHW Dense tensor.
func (s *ONNXSession) output(t *ort.Tensor[float32]) (*tensor.Dense, error) {
	raw := t.GetData()
	data := make([]float32, len(raw))
	copy(data, raw)

	shape := t.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}

	out := tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
	if s.options.Layout == model.LayoutNHWC {
		return east.ToNCHW(out)
	}
	return out, nil
}

// Close releases the session and its tensors.
//
// Returns:
//   - error: The combined errors from destroying each resource.
func (s *ONNXSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = multierr.Append(err, s.session.Destroy())
		s.session = nil
	}
	for _, t := range []**ort.Tensor[float32]{&s.input, &s.scores, &s.geometry} {
		if *t != nil {
			err = multierr.Append(err, (*t).Destroy())
			*t = nil
		}
	}
	return err
}
