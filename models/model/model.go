// Package model - Definitions shared by model packages.
package model

// Family is the family of models.
type Family string

const (
	// ModelFamilyTF is the TensorFlow model family (frozen graphs and their ONNX exports).
	ModelFamilyTF Family = "tf"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameEAST is the name of the EAST scene text detector.
	ModelNameEAST Name = "east"
)

// Layout is the memory order of a 4D tensor.
type Layout string

const (
	// LayoutNCHW orders tensors as batch, channel, row, col.
	LayoutNCHW Layout = "nchw"
	// LayoutNHWC orders tensors as batch, row, col, channel.
	LayoutNHWC Layout = "nhwc"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutNCHW || l == LayoutNHWC
}
