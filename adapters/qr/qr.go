// Package qr renders challenge URIs as scannable codes for signers on a
// separate device.
package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Renderer produces PNG images for challenge URIs.
type Renderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewRenderer creates a renderer. Recovery level is one of L, M, Q, H;
// anything else falls back to M.
func NewRenderer(size int, level string) *Renderer {
	var rl qrcode.RecoveryLevel
	switch level {
	case "L":
		rl = qrcode.Low
	case "M":
		rl = qrcode.Medium
	case "Q":
		rl = qrcode.High
	case "H":
		rl = qrcode.Highest
	default:
		rl = qrcode.Medium
	}

	return &Renderer{size: size, level: rl}
}

// RenderPNG encodes the challenge URI as a PNG image. It reads no state:
// rendering a challenge never mutates it.
func (r *Renderer) RenderPNG(uri string) ([]byte, error) {
	png, err := qrcode.Encode(uri, r.level, r.size)
	if err != nil {
		return nil, fmt.Errorf("failed to render challenge qr code: %w", err)
	}
	return png, nil
}
