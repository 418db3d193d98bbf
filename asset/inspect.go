package asset

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageInfo describes a decoded image header.
type imageInfo struct {
	Format string
	Width  int
	Height int
}

// inspectImage reads only the image header from data.
func inspectImage(data []byte) (imageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageInfo{}, fmt.Errorf("decode image header: %w", err)
	}
	return imageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
