package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates IoU against hand-computed overlaps.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{name: "identical", r1: Rect{0, 0, 100, 100}, r2: Rect{0, 0, 100, 100}, expected: 1.0},
		{name: "disjoint", r1: Rect{0, 0, 100, 100}, r2: Rect{200, 200, 300, 300}, expected: 0.0},
		{name: "touching edges", r1: Rect{0, 0, 100, 100}, r2: Rect{100, 0, 200, 100}, expected: 0.0},
		// 2500 / (10000 + 10000 - 2500)
		{name: "quarter overlap", r1: Rect{0, 0, 100, 100}, r2: Rect{50, 50, 150, 150}, expected: 0.142857},
		{name: "contained", r1: Rect{0, 0, 100, 100}, r2: Rect{25, 25, 75, 75}, expected: 0.25},
		// 40x10 text lines offset by half their width: 200 / 600
		{name: "shifted text line", r1: Rect{0, 0, 40, 10}, r2: Rect{20, 0, 60, 10}, expected: 0.333333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6, "IoU must be symmetric")
		})
	}
}

// TestIoU_vs_ImageRectangle compares against an image.Rectangle based computation.
func TestIoU_vs_ImageRectangle(t *testing.T) {
	cases := []struct {
		name   string
		r1, r2 Rect
	}{
		{"no overlap", Rect{0, 0, 100, 100}, Rect{200, 200, 300, 300}},
		{"partial overlap", Rect{0, 0, 100, 100}, Rect{50, 50, 150, 150}},
		{"full overlap", Rect{50, 50, 150, 150}, Rect{50, 50, 150, 150}},
		{"frame sized", Rect{0, 0, 640, 480}, Rect{320, 240, 640, 480}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want := rectangleIoU(tc.r1.Rectangle(), tc.r2.Rectangle())
			got := CalculateIoU(tc.r1, tc.r2)
			if math.Abs(float64(got-want)) > 0.0001 {
				t.Errorf("results differ: rect=%v image.Rectangle=%v", got, want)
			}
		})
	}
}

func rectangleIoU(r1, r2 image.Rectangle) float32 {
	inter := r1.Intersect(r2)
	if inter.Empty() {
		return 0
	}
	ia := inter.Dx() * inter.Dy()
	return float32(ia) / float32(r1.Dx()*r1.Dy()+r2.Dx()*r2.Dy()-ia)
}

func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 Rect
	}{
		{"zero area first", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"both zero area", Rect{0, 0, 0, 0}, Rect{0, 0, 0, 0}},
		{"inverted box", Rect{10, 10, 0, 0}, Rect{0, 0, 10, 10}},
		{"negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
		{"single pixel", Rect{0, 0, 1, 1}, Rect{0, 0, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range []float32{CalculateIoU(tt.r1, tt.r2), CalculateIoU(tt.r2, tt.r1)} {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(1))
			}
		})
	}
}

func TestRect_Helpers(t *testing.T) {
	r := Rect{X1: 10, Y1: 20, X2: 50, Y2: 30}
	assert.Equal(t, 40, r.Width())
	assert.Equal(t, 10, r.Height())
	assert.Equal(t, 400, r.Area())
	assert.Equal(t, image.Rect(10, 20, 50, 30), r.Rectangle())
	assert.Equal(t, r, RectFrom(r.Rectangle()))

	inverted := Rect{X1: 5, Y1: 5, X2: 1, Y2: 1}
	assert.Zero(t, inverted.Area())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 9))
	assert.Equal(t, 9, Clamp(12, 0, 9))
	assert.Equal(t, 4, Clamp(4, 0, 9))
}
