package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_Downsamples(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))

	data, err := encodeFrame(src, 100, 70)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 50, img.Bounds().Dy())
}

func TestEncodeFrame_KeepsSmallFrames(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 80, 60))

	data, err := encodeFrame(src, 100, 70)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 80, img.Bounds().Dx())
	require.Equal(t, 60, img.Bounds().Dy())
}

func TestEncodeFrame_RejectsEmptyImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 0, 0))

	_, err := encodeFrame(src, 100, 70)
	require.ErrorIs(t, err, ErrFrameNotReady)
}

func TestYUYVToImage(t *testing.T) {
	// one gray pixel pair: Y=128 U=128 V=128
	frame := []byte{128, 128, 128, 128}

	img, err := yuyvToImage(frame, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())

	r, g, b, _ := img.At(0, 0).RGBA()
	require.Equal(t, r, g)
	require.Equal(t, g, b)
}

func TestYUYVToImage_ShortFrame(t *testing.T) {
	_, err := yuyvToImage([]byte{1, 2}, 4, 4)
	require.Error(t, err)
}
