package qr

import (
	"encoding/base64"
	"log/slog"

	"github.com/skip2/go-qrcode"
)

const imageSize = 300

// GenerateDataUrl renders data as a 300px PNG QR code with the highest error
// correction level and returns it as a data URL, the form the frontend embeds
// directly in an <img> tag.
func GenerateDataUrl(data string) (string, error) {
	png, err := qrcode.Encode(data, qrcode.Highest, imageSize)
	if err != nil {
		slog.Error("error while generating qr code", "err", err)
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
