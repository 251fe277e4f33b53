package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-east/images"
)

func candidates(boxes []images.Rect, scores []float32) Candidates {
	return Candidates{Boxes: boxes, Scores: scores}
}

func TestSuppressIndices(t *testing.T) {
	tests := []struct {
		name   string
		c      Candidates
		config NMSConfig
		want   []int
	}{
		{
			name:   "empty input",
			c:      Candidates{},
			config: DefaultNMSConfig(),
			want:   []int{},
		},
		{
			name: "identical boxes with equal scores keep the earlier index",
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 0, Y1: 0, X2: 10, Y2: 10}},
				[]float32{0.9, 0.9},
			),
			config: DefaultNMSConfig(),
			want:   []int{0},
		},
		{
			name: "equal scores among many keep insertion order",
			c: candidates(
				[]images.Rect{{X1: 100, Y1: 100, X2: 110, Y2: 110}, {X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 0, Y1: 0, X2: 10, Y2: 10}},
				[]float32{0.6, 0.8, 0.8, 0.8},
			),
			config: DefaultNMSConfig(),
			want:   []int{1, 0},
		},
		{
			name: "IoU below threshold keeps both",
			// IoU = 50 / 150 = 0.33
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 5, Y1: 0, X2: 15, Y2: 10}},
				[]float32{0.7, 0.9},
			),
			config: DefaultNMSConfig(),
			want:   []int{1, 0},
		},
		{
			name: "IoU above threshold keeps the higher score",
			// IoU = 80 / 120 = 0.67
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 2, Y1: 0, X2: 12, Y2: 10}},
				[]float32{0.7, 0.9},
			),
			config: DefaultNMSConfig(),
			want:   []int{1},
		},
		{
			name: "IoU equal to threshold is not suppressed",
			// IoU = 40 / 100 = 0.4
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 0, Y1: 0, X2: 4, Y2: 10}},
				[]float32{0.9, 0.8},
			),
			config: NMSConfig{IoUThreshold: 0.4, ScoreThreshold: 0.5},
			want:   []int{0, 1},
		},
		{
			name: "scores below the floor never enter",
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 50, Y1: 50, X2: 60, Y2: 60}},
				[]float32{0.3, 0.5},
			),
			config: DefaultNMSConfig(),
			want:   []int{1},
		},
		{
			name: "suppressed boxes do not suppress others",
			// a overlaps b heavily, b overlaps c heavily, a and c are apart.
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 3, Y1: 0, X2: 13, Y2: 10}, {X1: 6, Y1: 0, X2: 16, Y2: 10}},
				[]float32{0.9, 0.8, 0.7},
			),
			config: DefaultNMSConfig(),
			want:   []int{0, 2},
		},
		{
			name: "cap keeps only the best candidates",
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 1, Y2: 1}, {X1: 10, Y1: 10, X2: 11, Y2: 11}, {X1: 20, Y1: 20, X2: 21, Y2: 21}},
				[]float32{0.6, 0.9, 0.7},
			),
			config: NMSConfig{IoUThreshold: 0.4, ScoreThreshold: 0.5, MaxCandidates: 2},
			want:   []int{1, 2},
		},
		{
			name: "uneven lists use the shorter length",
			c: candidates(
				[]images.Rect{{X1: 0, Y1: 0, X2: 1, Y2: 1}, {X1: 10, Y1: 10, X2: 11, Y2: 11}},
				[]float32{0.9},
			),
			config: DefaultNMSConfig(),
			want:   []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuppressIndices(tt.c, tt.config)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuppressIndices_DoesNotMutateInput(t *testing.T) {
	c := candidates(
		[]images.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 10}, {X1: 1, Y1: 1, X2: 11, Y2: 11}},
		[]float32{0.6, 0.9},
	)

	SuppressIndices(c, DefaultNMSConfig())

	assert.Equal(t, []float32{0.6, 0.9}, c.Scores)
	assert.Equal(t, images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, c.Boxes[0])
}

func TestCandidates_Append(t *testing.T) {
	c := NewCandidates(2)
	c.Append(images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, 0.75)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []float32{0.75}, c.Scores)
}
