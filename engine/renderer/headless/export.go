package headless

import (
	"image"
	"image/color"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/umbra/engine/math"
)

// RGBA converts the image to 8 bit RGBA, clamping every channel to [0,1].
func (i *Image) RGBA() *image.RGBA {
	w, h := int(i.extent.Width), int(i.extent.Height)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := i.At(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: toByte(v[0]),
				G: toByte(v[1]),
				B: toByte(v[2]),
				A: toByte(v[3]),
			})
		}
	}
	return out
}

func toByte(f float32) uint8 {
	return uint8(math.Clamp(f, 0, 1)*255 + 0.5)
}

// WriteTIFF encodes the image losslessly.
func (i *Image) WriteTIFF(w io.Writer) error {
	if err := tiff.Encode(w, i.RGBA(), &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return errors.Wrap(err, "encoding tiff")
	}
	return nil
}
