package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPad_CentersOriginal(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	src := solidImage(400, 300, red)

	dst := Pad(src, 512, 512)

	require.Equal(t, image.Rect(0, 0, 512, 512), dst.Bounds())
	assert.Equal(t, FillColor, dst.RGBAAt(0, 0))
	assert.Equal(t, FillColor, dst.RGBAAt(55, 255))
	assert.Equal(t, red, dst.RGBAAt(56, 106))
	assert.Equal(t, red, dst.RGBAAt(455, 405))
	assert.Equal(t, FillColor, dst.RGBAAt(456, 405))
	assert.Equal(t, FillColor, dst.RGBAAt(455, 406))
	assert.Equal(t, FillColor, dst.RGBAAt(511, 511))
}

func TestPad_DoesNotMutateInput(t *testing.T) {
	blue := color.RGBA{B: 255, A: 255}
	src := solidImage(10, 10, blue)
	before := append([]uint8(nil), src.Pix...)

	dst := Pad(src, 16, 16)

	assert.Equal(t, before, src.Pix)
	assert.Equal(t, image.Rect(0, 0, 10, 10), src.Bounds())
	assert.NotSame(t, src, dst)
}

func TestPad_SubImageWithOffsetOrigin(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	base := solidImage(20, 20, color.RGBA{A: 255})
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			base.SetRGBA(x, y, green)
		}
	}
	sub := base.SubImage(image.Rect(5, 5, 15, 15))

	dst := Pad(sub, 16, 16)

	assert.Equal(t, green, dst.RGBAAt(3, 3))
	assert.Equal(t, green, dst.RGBAAt(12, 12))
	assert.Equal(t, FillColor, dst.RGBAAt(2, 2))
}

func TestPad_SameSizeIsCopy(t *testing.T) {
	c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	src := solidImage(8, 8, c)

	dst := Pad(src, 8, 8)

	assert.Equal(t, src.Pix, dst.Pix)
}

func TestProperty_PadAlwaysMatchesTarget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("padded image has exactly the target dimensions", prop.ForAll(
		func(ow, oh, extraW, extraH int) bool {
			src := image.NewRGBA(image.Rect(0, 0, ow, oh))
			dst := Pad(src, ow+extraW, oh+extraH)
			return dst.Bounds().Dx() == ow+extraW && dst.Bounds().Dy() == oh+extraH
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		gen.IntRange(0, 64),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
