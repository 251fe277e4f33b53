package mats

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, err := Decode(encodedJPEG(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 48), img.Bounds().Size())

	r, _, _, _ := img.At(10, 10).RGBA()
	assert.InDelta(t, 200, r>>8, 8)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xD8, 'A', 'A', 'A', 0xFF, 0xD9})
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, imaging.Save(imaging.New(32, 16, color.White), path))

	img, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 16), img.Bounds().Size())

	_, err = Read(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
