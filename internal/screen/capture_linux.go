//go:build linux

package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
)

type linuxBackend struct{}

func (linuxBackend) captureRaw(ctx context.Context, region image.Rectangle, path string) error {
	// Try grim (wayland) first, fall back to scrot (X11)
	var cmd *exec.Cmd
	if _, err := exec.LookPath("grim"); err == nil {
		geometry := fmt.Sprintf("%d,%d %dx%d", region.Min.X, region.Min.Y, region.Dx(), region.Dy())
		cmd = exec.CommandContext(ctx, "grim", "-t", "png", "-g", geometry, path)
	} else if _, err := exec.LookPath("scrot"); err == nil {
		area := fmt.Sprintf("%d,%d,%d,%d", region.Min.X, region.Min.Y, region.Dx(), region.Dy())
		cmd = exec.CommandContext(ctx, "scrot", "-o", "-a", area, path)
	} else {
		return fmt.Errorf("no screenshot tool found (install grim or scrot): %w", ErrUnsupported)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("screenshot tool failed", "tool", cmd.Path, "stderr", stderr.String())
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return nil
}

// New creates a platform-specific screen capturer
func New() (Capturer, error) {
	return newBase(linuxBackend{})
}
