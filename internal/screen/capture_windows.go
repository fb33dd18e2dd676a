//go:build windows

package screen

import (
	"context"
	"image"
)

type windowsBackend struct{}

func (windowsBackend) captureRaw(context.Context, image.Rectangle, string) error {
	return ErrUnsupported
}

// New creates a platform-specific screen capturer
func New() (Capturer, error) {
	return newBase(windowsBackend{})
}
