// Package images - Image primitives shared by the detection pipeline.
package images

import "image"

// Rect is a lightweight box in integer pixel coordinates.
//
// X1,Y1 is the start corner and X2,Y2 the end corner. Boxes decoded from EAST
// geometry may be degenerate (zero or negative extent) and are kept as-is.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Width returns the horizontal extent of the box, or 0 when degenerate.
func (r Rect) Width() int {
	return max(r.X2-r.X1, 0)
}

// Height returns the vertical extent of the box, or 0 when degenerate.
func (r Rect) Height() int {
	return max(r.Y2-r.Y1, 0)
}

// Area returns the area of the box, or 0 when degenerate.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// Rectangle converts the box to a canonical image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// RectFrom converts an image.Rectangle into a Rect.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical and 0.0 means they do not
// overlap (touching edges do not overlap). Degenerate boxes have zero area, so
// two degenerate boxes score 0.
//
// Arguments:
//   - r: The first box.
//   - o: The box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts where both boxes have started and ends where the
	// first one ends.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea) / float32(unionArea)
}

// Clamp limits v to the closed range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
