package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend writes a fixed frame instead of running a screenshot tool.
type fakeBackend struct {
	frame image.Image
	err   error
}

func (f fakeBackend) captureRaw(_ context.Context, _ image.Rectangle, path string) error {
	if f.err != nil {
		return f.err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, f.frame)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBaseCapturerRegionSized(t *testing.T) {
	c, err := newBase(fakeBackend{frame: solid(4, 3, color.RGBA{10, 20, 30, 255})})
	require.NoError(t, err)
	defer c.Close()

	img, err := c.Capture(context.Background(), image.Rect(100, 100, 104, 103))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestBaseCapturerCropsFullFrame(t *testing.T) {
	frame := solid(20, 20, color.RGBA{0, 0, 0, 255})
	frame.SetRGBA(5, 6, color.RGBA{255, 0, 0, 255})

	c, err := newBase(fakeBackend{frame: frame})
	require.NoError(t, err)
	defer c.Close()

	img, err := c.Capture(context.Background(), image.Rect(5, 6, 7, 8))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)
}

func TestBaseCapturerBackendError(t *testing.T) {
	c, err := newBase(fakeBackend{err: ErrUnsupported})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Capture(context.Background(), image.Rect(0, 0, 1, 1))
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestBaseCapturerClose(t *testing.T) {
	c, err := newBase(fakeBackend{})
	require.NoError(t, err)
	dir := c.tempDir

	require.NoError(t, c.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "temp directory should be removed after Close")
}

// regionBackend encodes the region's X origin into the red channel and
// holds the file for delay before returning.
type regionBackend struct {
	delay time.Duration
}

func (b regionBackend) captureRaw(_ context.Context, region image.Rectangle, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	err = png.Encode(out, solid(region.Dx(), region.Dy(), color.RGBA{R: uint8(region.Min.X), A: 255}))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if region.Min.X == 1 {
		time.Sleep(b.delay)
	}
	return err
}

func TestBaseCapturerConcurrentCaptures(t *testing.T) {
	c, err := newBase(regionBackend{delay: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for x := 1; x <= 4; x++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := c.Capture(context.Background(), image.Rect(x, 0, x+2, 2))
			if !assert.NoError(t, err, "region at x=%d", x) {
				return
			}
			r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
			assert.Equal(t, uint32(x), r>>8, "region at x=%d got another capture's pixels", x)
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(c.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "capture files should be removed")
}

func TestCropOutsideFrame(t *testing.T) {
	_, err := Crop(solid(10, 10, color.RGBA{}), image.Rect(5, 5, 20, 20))
	assert.Error(t, err)
}

func TestFileCapturer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, solid(50, 50, color.RGBA{200, 100, 50, 255})))
	require.NoError(t, out.Close())

	img, err := FileCapturer{Path: path}.Capture(context.Background(), image.Rect(10, 10, 20, 15))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), img.Bounds())

	_, err = FileCapturer{Path: filepath.Join(t.TempDir(), "missing.png")}.Capture(context.Background(), image.Rect(0, 0, 1, 1))
	assert.Error(t, err)
}
