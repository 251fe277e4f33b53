// Package inference - Inference engines producing EAST score and geometry maps.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-east/inference/providers"
	"github.com/nvr-ai/go-east/models/east"
)

// Engine runs the detector on a prepared input blob.
//
// Implementations are treated as pure functions by the pipeline: the blob is
// not retained and the returned tensors are owned by the caller.
type Engine interface {
	// Options describes the model input the engine expects.
	Options() east.Options
	// Infer returns [1,1,R,C] scores and [1,5,R,C] geometry for blob.
	Infer(ctx context.Context, blob *tensor.Dense) (scores, geometry *tensor.Dense, err error)
	// Close releases native resources.
	Close() error
}

// Backend names an Engine implementation.
type Backend string

const (
	// BackendONNXRuntime runs an ONNX export of EAST through onnxruntime.
	BackendONNXRuntime Backend = "onnxruntime"
	// BackendOpenCV runs the frozen TensorFlow graph through OpenCV DNN.
	BackendOpenCV Backend = "opencv"
)

// EngineBuilder builds an Engine with a fluent API. The first error stops
// further configuration and is returned by Build.
type EngineBuilder struct {
	backend  Backend
	options  east.Options
	provider providers.Config
	err      error
}

// NewEngineBuilder creates a builder for the ONNX Runtime backend with the
// default EAST options and CPU provider.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{
		backend:  BackendONNXRuntime,
		options:  east.DefaultOptions(),
		provider: providers.DefaultConfig(),
	}
}

// WithBackend selects the engine implementation.
//
// Arguments:
//   - backend: BackendONNXRuntime or BackendOpenCV.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithBackend(backend Backend) *EngineBuilder {
	if b.HasError() {
		return b
	}
	switch backend {
	case BackendONNXRuntime, BackendOpenCV:
		b.backend = backend
	default:
		b.err = errors.Errorf("unknown inference backend %q", backend)
	}
	return b
}

// WithModel sets the model options.
//
// Arguments:
//   - opts: The EAST model options; Path must point at the model file.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(opts east.Options) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if opts.Path == "" {
		b.err = errors.New("model path is required")
		return b
	}
	if err := opts.Validate(); err != nil {
		b.err = errors.Wrap(err, "invalid model options")
		return b
	}
	b.options = opts
	return b
}

// WithProvider sets the ONNX Runtime execution provider. It is ignored by
// the OpenCV backend.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider(cfg providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = errors.Wrap(err, "invalid provider")
		return b
	}
	b.provider = cfg
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// Build creates the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The first configuration error, or the error creating the engine.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.options.Path == "" {
		return nil, errors.New("model path is required")
	}

	if b.backend == BackendOpenCV {
		s, err := NewDNNSession(b.options)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := NewONNXSession(b.options, b.provider)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// checkCtx returns the context error if ctx is already done.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// checkBlob verifies blob matches the input shape of opts.
func checkBlob(blob *tensor.Dense, opts east.Options) ([]float32, error) {
	if blob == nil {
		return nil, errors.New("nil input blob")
	}
	want := inputShape(opts)
	got := blob.Shape()
	if len(got) != len(want) {
		return nil, errors.Errorf("input blob shape %v, want %v", got, want)
	}
	for i := range want {
		if int64(got[i]) != want[i] {
			return nil, errors.Errorf("input blob shape %v, want %v", got, want)
		}
	}
	data, ok := blob.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input blob must be float32, got %T", blob.Data())
	}
	return data, nil
}
