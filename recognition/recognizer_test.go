package recognition

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	lines := []Line{
		{Text: "  EXIT ", Confidence: 0.93},
		{Text: "noise", Confidence: 0.5},
		{Text: "faint", Confidence: 0.2},
		{Text: "   ", Confidence: 0.99},
		{Text: "SPEED 30\n", Confidence: 0.51},
	}

	got := Filter(lines, DefaultThreshold)
	assert.Equal(t, []Line{
		{Text: "EXIT", Confidence: 0.93},
		{Text: "SPEED 30", Confidence: 0.51},
	}, got)
	assert.Equal(t, "  EXIT ", lines[0].Text)

	assert.Empty(t, Filter(nil, DefaultThreshold))
	assert.Len(t, Filter(lines, 0), 4)
}

type fakeRecognizer struct {
	byWidth map[int][]Line
	err     error
}

func (f fakeRecognizer) Recognize(_ context.Context, img image.Image) ([]Line, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

func TestRecognizeAll(t *testing.T) {
	r := fakeRecognizer{byWidth: map[int][]Line{
		10: {{Text: "ONE", Confidence: 0.9}},
		20: {{Text: "two", Confidence: 0.3}},
	}}
	regions := []image.Image{
		image.NewGray(image.Rect(0, 0, 10, 5)),
		image.NewGray(image.Rect(0, 0, 20, 5)),
		image.NewGray(image.Rect(0, 0, 30, 5)),
	}

	got, err := RecognizeAll(context.Background(), r, regions, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []Line{{Text: "ONE", Confidence: 0.9}}, got[0])
	assert.Empty(t, got[1])
	assert.Empty(t, got[2])
}

func TestRecognizeAll_Errors(t *testing.T) {
	regions := []image.Image{image.NewGray(image.Rect(0, 0, 1, 1))}

	boom := errors.New("ocr crashed")
	_, err := RecognizeAll(context.Background(), fakeRecognizer{err: boom}, regions, DefaultThreshold)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RecognizeAll(ctx, fakeRecognizer{}, regions, DefaultThreshold)
	assert.ErrorIs(t, err, context.Canceled)
}
