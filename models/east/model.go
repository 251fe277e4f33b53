// Package east - EAST scene text detector: blob preparation, geometry decoding
// and coordinate rescaling.
package east

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-east/models/model"
)

const (
	// Stride is the number of input pixels covered by one output cell.
	Stride = 4

	// DefaultInputSize is the side of the square detector input.
	DefaultInputSize = 320

	// ScoresLayer is the frozen-graph layer holding per-cell text probability.
	ScoresLayer = "feature_fusion/Conv_7/Sigmoid"
	// GeometryLayer is the frozen-graph layer holding distances and angle.
	GeometryLayer = "feature_fusion/concat_3"
	// InputLayer is the frozen-graph input placeholder.
	InputLayer = "input_images"
)

// Mean is the per-channel mean subtracted from RGB pixels before inference.
var Mean = [3]float32{123.68, 116.78, 103.94}

// Options describes an EAST model instance.
type Options struct {
	Name   model.Name   `json:"name" yaml:"name"`
	Family model.Family `json:"family" yaml:"family"`
	Path   string       `json:"path" yaml:"path"`
	// InputSize is the detector input resolution. Both sides must be
	// multiples of 32.
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// Inputs and Outputs name the graph tensors. Outputs are ordered
	// scores first, geometry second.
	Inputs  []string `json:"inputs" yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Layout is the tensor layout the model consumes and produces.
	Layout model.Layout `json:"layout" yaml:"layout"`
}

// DefaultOptions returns the options for the stock frozen EAST graph.
//
// Returns:
//   - Options: 320x320 NCHW input with the standard layer names.
func DefaultOptions() Options {
	return Options{
		Name:      model.ModelNameEAST,
		Family:    model.ModelFamilyTF,
		InputSize: image.Point{X: DefaultInputSize, Y: DefaultInputSize},
		Inputs:    []string{InputLayer},
		Outputs:   []string{ScoresLayer, GeometryLayer},
		Layout:    model.LayoutNCHW,
	}
}

// ONNXOptions returns the options for an ONNX export of the frozen graph
// produced by tf2onnx, which keeps TensorFlow tensor names and NHWC layout.
func ONNXOptions() Options {
	o := DefaultOptions()
	o.Inputs = []string{InputLayer + ":0"}
	o.Outputs = []string{ScoresLayer + ":0", GeometryLayer + ":0"}
	o.Layout = model.LayoutNHWC
	return o
}

// Validate checks the options for a usable configuration.
func (o Options) Validate() error {
	if o.InputSize.X <= 0 || o.InputSize.Y <= 0 {
		return errors.Errorf("input size must be positive, got %v", o.InputSize)
	}
	if o.InputSize.X%32 != 0 || o.InputSize.Y%32 != 0 {
		return errors.Errorf("input size must be a multiple of 32, got %v", o.InputSize)
	}
	if len(o.Inputs) != 1 {
		return errors.Errorf("EAST takes exactly one input, got %d", len(o.Inputs))
	}
	if len(o.Outputs) != 2 {
		return errors.Errorf("EAST produces exactly two outputs, got %d", len(o.Outputs))
	}
	if !o.Layout.Valid() {
		return errors.Errorf("unknown tensor layout %q", o.Layout)
	}
	return nil
}

// OutputGrid returns the rows and columns of the score map for the input size.
func (o Options) OutputGrid() (rows, cols int) {
	return o.InputSize.Y / Stride, o.InputSize.X / Stride
}
