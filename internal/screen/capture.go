package screen

import (
	"context"
	"fmt"
	"image"
	"os"
)

// FileCapturer reads a full-display frame from an image file on every
// capture. It serves bench setups where another process mirrors the
// composited output to disk.
type FileCapturer struct {
	Path string
}

// Capture decodes the frame and crops region out of it.
func (f FileCapturer) Capture(ctx context.Context, region image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", f.Path, err)
	}
	return Crop(img, region)
}

// Close is a no-op.
func (FileCapturer) Close() error { return nil }
