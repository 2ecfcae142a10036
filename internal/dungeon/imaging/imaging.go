// Package imaging normalises downloaded map images to PNG
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// ReencodePNG decodes a PNG, JPEG or GIF image and encodes it as PNG
func ReencodePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &domain.DataShapeError{Reason: "image is empty"}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DataShapeError{Reason: "image could not be decoded", Err: err}
	}
	// already PNG: keep the original bytes
	if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s image as png: %w", format, err)
	}
	return buf.Bytes(), nil
}
