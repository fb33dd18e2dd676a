//go:build darwin

package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
)

type darwinBackend struct{}

func (darwinBackend) captureRaw(ctx context.Context, region image.Rectangle, path string) error {
	// -x: no sound, -R: region in points
	rect := fmt.Sprintf("%d,%d,%d,%d", region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-R", rect, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("screencapture failed", "stderr", stderr.String())
		return fmt.Errorf("screencapture: %w", err)
	}
	return nil
}

// New creates a platform-specific screen capturer
func New() (Capturer, error) {
	return newBase(darwinBackend{})
}
