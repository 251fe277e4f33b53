package pipeline

import (
	"image"

	"github.com/nvr-ai/go-east/images"
	"github.com/nvr-ai/go-east/recognition"
)

// Detection is one text region found in a frame.
type Detection struct {
	// Box is the region in source frame coordinates, inside the frame bounds.
	Box image.Rectangle
	// Region is an owned copy of the pixels under Box.
	Region image.Image
	// Confidence is the detector score of the kept candidate.
	Confidence float32
}

// Result is the outcome of one Detect call. It is immutable once returned
// and is what the capture loop publishes to readers.
type Result struct {
	Frame images.Frame
	// Annotated is a copy of the frame with detection boxes drawn, or nil
	// when annotation is disabled.
	Annotated image.Image
	// Detections are ordered by descending confidence.
	Detections []Detection
	// Recognized holds the filtered lines per detection, in detection order,
	// when a recognizer is configured.
	Recognized [][]recognition.Line
}

// Boxes returns the detection rectangles in order.
func (r *Result) Boxes() []image.Rectangle {
	out := make([]image.Rectangle, len(r.Detections))
	for i, d := range r.Detections {
		out[i] = d.Box
	}
	return out
}

// Display returns the annotated frame when present, otherwise the frame.
func (r *Result) Display() image.Image {
	if r.Annotated != nil {
		return r.Annotated
	}
	return r.Frame.Image
}
