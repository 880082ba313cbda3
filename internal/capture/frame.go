package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// encodeFrame downsamples img proportionally so width <= maxWidth and
// encodes it as JPEG at the given quality.
func encodeFrame(img image.Image, maxWidth, quality int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrFrameNotReady
	}

	dst := img
	if maxWidth > 0 && b.Dx() > maxWidth {
		scale := float64(maxWidth) / float64(b.Dx())
		height := int(float64(b.Dy())*scale + 0.5)
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// yuyvToImage converts a packed YUYV 4:2:2 frame into an RGBA image
// using BT.601 coefficients.
func yuyvToImage(frame []byte, width, height int) (image.Image, error) {
	need := width * height * 2
	if width <= 0 || height <= 0 || len(frame) < need {
		return nil, fmt.Errorf("short yuyv frame: have %d bytes, need %d", len(frame), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 2 {
			y0 := int(frame[i])
			u := int(frame[i+1])
			y1 := int(frame[i+2])
			v := int(frame[i+3])
			i += 4

			setYUV(img, x, y, y0, u, v)
			if x+1 < width {
				setYUV(img, x+1, y, y1, u, v)
			}
		}
	}
	return img, nil
}

func setYUV(img *image.RGBA, x, y, lum, u, v int) {
	c := 298 * (lum - 16)
	d := u - 128
	e := v - 128

	o := img.PixOffset(x, y)
	img.Pix[o] = clamp8((c + 409*e + 128) >> 8)
	img.Pix[o+1] = clamp8((c - 100*d - 208*e + 128) >> 8)
	img.Pix[o+2] = clamp8((c + 516*d + 128) >> 8)
	img.Pix[o+3] = 0xff
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
