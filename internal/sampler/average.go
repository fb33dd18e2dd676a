package sampler

import (
	"image"

	"golang.org/x/image/draw"
)

// Average returns the unweighted mean of each color channel over every pixel
// of img. Channel bytes are summed directly; the panel output is treated as
// linear light.
func Average(img image.Image) (r, g, b uint32) {
	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	n := uint64(bounds.Dx()) * uint64(bounds.Dy())
	if n == 0 {
		return 0, 0, 0
	}

	var rs, gs, bs uint64
	for y := 0; y < bounds.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+bounds.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			rs += uint64(row[x])
			gs += uint64(row[x+1])
			bs += uint64(row[x+2])
		}
	}
	return uint32(rs / n), uint32(gs / n), uint32(bs / n)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
