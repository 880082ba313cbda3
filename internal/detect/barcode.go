package detect

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// BarcodeDecoder turns an image into a decoded symbol payload. A missing
// symbol is ("", false, nil); decode failure is never an error to callers.
type BarcodeDecoder interface {
	Decode(ctx context.Context, img []byte) (string, bool, error)
}

// ZXingDecoder decodes the one-dimensional symbologies used on exam
// sheets: Code 128, EAN-13, EAN-8, Code 39 and UPC-A/UPC-E.
type ZXingDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder creates a decoder restricted to the supported formats.
func NewZXingDecoder() *ZXingDecoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{
			gozxing.BarcodeFormat_CODE_128,
			gozxing.BarcodeFormat_EAN_13,
			gozxing.BarcodeFormat_EAN_8,
			gozxing.BarcodeFormat_CODE_39,
			gozxing.BarcodeFormat_UPC_A,
			gozxing.BarcodeFormat_UPC_E,
		},
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &ZXingDecoder{
		reader: oned.NewMultiFormatOneDReader(hints),
		hints:  hints,
	}
}

// Decode reports the symbol payload, or absent when the image holds no
// decodable symbol or cannot be decoded at all.
func (d *ZXingDecoder) Decode(_ context.Context, data []byte) (string, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false, nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, nil
	}

	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", false, nil
	}
	return result.GetText(), true, nil
}
