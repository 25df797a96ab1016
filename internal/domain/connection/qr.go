package connection

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
)

const defaultQRSize = 512

// EncodeQR renders text as a PNG QR code of size x size pixels.
func EncodeQR(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}

// DecodeQR reads the text of the first QR code found in a PNG, JPEG or GIF
// image.
func DecodeQR(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.KindMalformedPayload, err, "image could not be read")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", apperr.Wrap(apperr.KindMalformedPayload, err, "image could not be read")
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", apperr.Wrap(apperr.KindMalformedPayload, err, "no QR code found in image")
	}
	return result.GetText(), nil
}
