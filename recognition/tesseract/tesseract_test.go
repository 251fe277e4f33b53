//go:build cgo

package tesseract

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nvr-ai/go-east/recognition"
)

// textImage renders text in black on a white background.
func textImage(t *testing.T, text string) image.Image {
	t.Helper()

	font, err := truetype.Parse(goregular.TTF)
	require.NoError(t, err)

	dc := gg.NewContext(480, 120)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 64}))
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(text, 240, 60, 0.5, 0.5)
	return dc.Image()
}

func TestToLines(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(0, 0, 90, 20), Word: "OPEN", Confidence: 87},
		{Box: image.Rect(0, 24, 40, 44), Word: "24h", Confidence: 50},
		{Box: image.Rect(0, 48, 10, 58), Word: "", Confidence: 0},
	}

	assert.Equal(t, []recognition.Line{
		{Text: "OPEN", Confidence: 0.87},
		{Text: "24h", Confidence: 0.5},
		{Text: "", Confidence: 0},
	}, toLines(boxes))
	assert.Empty(t, toLines(nil))
}

func TestRecognizer(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	lines, err := r.Recognize(context.Background(), textImage(t, "HELLO"))
	if err != nil {
		t.Skipf("tesseract language data unavailable: %v", err)
	}
	require.NotEmpty(t, lines)

	var text []string
	for _, l := range lines {
		assert.GreaterOrEqual(t, l.Confidence, 0.0)
		assert.LessOrEqual(t, l.Confidence, 1.0)
		text = append(text, l.Text)
	}
	assert.Contains(t, strings.ToUpper(strings.Join(text, " ")), "HELLO")

	kept := recognition.Filter(lines, recognition.DefaultThreshold)
	assert.NotEmpty(t, kept)
}

func TestRecognizer_EmptyAndClosed(t *testing.T) {
	r, err := New("eng")
	require.NoError(t, err)

	lines, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.NoError(t, err)
	assert.Empty(t, lines)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Recognize(ctx, textImage(t, "x"))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Recognize(context.Background(), textImage(t, "x"))
	assert.ErrorContains(t, err, "closed")
}
