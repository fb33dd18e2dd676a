package sampler

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
)

func TestReplyLayout(t *testing.T) {
	buf, err := Sample{R: 1, G: 2, B: 3, Timestamp: 42}.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, ReplySize)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[12:16], "padding before the timestamp")

	var s Sample
	require.NoError(t, s.UnmarshalBinary(buf))
	assert.Equal(t, Sample{R: 1, G: 2, B: 3, Timestamp: 42}, s)
}

func TestUnmarshalRejectsWrongSize(t *testing.T) {
	var s Sample
	for _, n := range []int{0, 16, ReplySize - 1, ReplySize + 1} {
		err := s.UnmarshalBinary(make([]byte, n))
		assert.True(t, apperrors.IsCode(err, apperrors.InvalidReply), "size %d", n)
	}
}

func TestAverageUniform(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 54, 54))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 128, 0, 255
	}
	r, g, b := Average(img)
	assert.Equal(t, [3]uint32{255, 128, 0}, [3]uint32{r, g, b})
}

func TestAverageTruncates(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 0, B: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 10, G: 0, B: 255, A: 255})
	img.SetRGBA(2, 0, color.RGBA{R: 11, G: 2, B: 0, A: 255})

	r, g, b := Average(img)
	assert.Equal(t, uint32(10), r)
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(170), b)
}

func TestAverageSubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{A: 255}
			if x >= 5 {
				c.G = 200
			}
			img.SetRGBA(x, y, c)
		}
	}
	_, g, _ := Average(img.SubImage(image.Rect(5, 2, 10, 6)))
	assert.Equal(t, uint32(200), g)
}

func TestAverageConvertsOtherModels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 77
	}
	r, g, b := Average(img)
	assert.Equal(t, [3]uint32{77, 77, 77}, [3]uint32{r, g, b})
}

func TestAverageEmpty(t *testing.T) {
	r, g, b := Average(image.NewRGBA(image.Rectangle{}))
	assert.Zero(t, r+g+b)
}
