package images

import (
	"image"
	"time"
)

// Frame is a single decoded image, the unit of work for detection.
type Frame struct {
	// Seq is the arrival order of the frame within its source, starting at 1.
	// Still images use 0.
	Seq uint64
	// Image holds the decoded pixels. Consumers must not mutate it.
	Image image.Image
	// Timestamp is when the frame was decoded.
	Timestamp time.Time
}

// Size returns the frame width and height.
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}
