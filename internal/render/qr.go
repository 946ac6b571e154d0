package render

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const scanCodeSize = 256

// RenderScanCode encodes payload as a PNG QR code.
func (r *Renderer) RenderScanCode(payload string) ([]byte, error) {
	const op = "render.Renderer.RenderScanCode"

	png, err := r.scanCode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return png, nil
}

func encodeQR(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}

	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	return q.PNG(scanCodeSize)
}
