// Package screen captures the composited panel contents of a screen region.
package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // PNG decoder
	"os"

	"golang.org/x/image/draw"
)

// ErrUnsupported is returned by backends with no capture facility.
var ErrUnsupported = errors.New("screen capture not supported on this platform")

// Capturer grabs the current contents of a screen region. The returned
// image covers exactly the region; its origin is unspecified.
type Capturer interface {
	Capture(ctx context.Context, region image.Rectangle) (image.Image, error)
	Close() error
}

// backend implements platform-specific raw capture of region into path.
type backend interface {
	captureRaw(ctx context.Context, region image.Rectangle, path string) error
}

// baseCapturer runs a backend into a private temp dir and decodes the result.
type baseCapturer struct {
	backend
	tempDir string
}

func newBase(b backend) (*baseCapturer, error) {
	tmpDir, err := os.MkdirTemp("", "als-screen-*")
	if err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &baseCapturer{backend: b, tempDir: tmpDir}, nil
}

func (c *baseCapturer) Capture(ctx context.Context, region image.Rectangle) (image.Image, error) {
	// One file per call; captures may overlap.
	f, err := os.CreateTemp(c.tempDir, "region-*.png")
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	tmpFile := f.Name()
	f.Close()
	defer os.Remove(tmpFile)

	if err := c.captureRaw(ctx, region, tmpFile); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	// Some tools ignore the geometry and grab the whole display.
	if b := img.Bounds(); b.Dx() != region.Dx() || b.Dy() != region.Dy() {
		return Crop(img, region)
	}
	return img, nil
}

func (c *baseCapturer) Close() error {
	if c.tempDir == "" {
		return nil
	}
	return os.RemoveAll(c.tempDir)
}

// Crop copies region out of a full-display image into a new RGBA image.
func Crop(img image.Image, region image.Rectangle) (image.Image, error) {
	if !region.In(img.Bounds()) {
		return nil, fmt.Errorf("region %v outside frame %v", region, img.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)
	return dst, nil
}
