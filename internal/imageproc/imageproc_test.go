package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err, "output must be a JPEG")
	return img
}

func TestPrepareVideoInput_ShrinksLargeImage(t *testing.T) {
	out, err := PrepareVideoInput(createTestPNG(t, 1536, 1024))
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 768, b.Dx())
	assert.Equal(t, 512, b.Dy())
}

func TestPrepareVideoInput_PortraitFitsInside(t *testing.T) {
	out, err := PrepareVideoInput(createTestPNG(t, 600, 1200))
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 384, b.Dx())
	assert.Equal(t, 768, b.Dy())
}

func TestPrepareVideoInput_NoEnlargement(t *testing.T) {
	out, err := PrepareVideoInput(createTestPNG(t, 300, 200))
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 300, b.Dx())
	assert.Equal(t, 200, b.Dy())
}

func TestToJPEG_KeepsSize(t *testing.T) {
	out, err := ToJPEG(createTestPNG(t, 1000, 10))
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 1000, b.Dx())
	assert.Equal(t, 10, b.Dy())
}

func TestDecodeErrors(t *testing.T) {
	_, err := ToJPEG(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = PrepareVideoInput([]byte("definitely not an image"))
	assert.Error(t, err)
}
