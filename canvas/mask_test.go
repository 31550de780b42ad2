package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countGenerated(mask *image.Gray) int {
	n := 0
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y == MaskGenerate {
				n++
			}
		}
	}
	return n
}

func TestBuildMask_ConcreteScenario(t *testing.T) {
	mask := BuildMask(400, 300, 512, 512)

	require.Equal(t, image.Rect(0, 0, 512, 512), mask.Bounds())
	assert.Equal(t, 512*512-400*300, countGenerated(mask))

	// strip edges
	assert.Equal(t, MaskGenerate, mask.GrayAt(55, 200).Y)
	assert.Equal(t, MaskPreserve, mask.GrayAt(56, 200).Y)
	assert.Equal(t, MaskPreserve, mask.GrayAt(455, 200).Y)
	assert.Equal(t, MaskGenerate, mask.GrayAt(456, 200).Y)
	assert.Equal(t, MaskGenerate, mask.GrayAt(200, 105).Y)
	assert.Equal(t, MaskPreserve, mask.GrayAt(200, 106).Y)
	assert.Equal(t, MaskPreserve, mask.GrayAt(200, 405).Y)
	assert.Equal(t, MaskGenerate, mask.GrayAt(200, 406).Y)
	// corners
	assert.Equal(t, MaskGenerate, mask.GrayAt(0, 0).Y)
	assert.Equal(t, MaskGenerate, mask.GrayAt(511, 511).Y)
}

func TestBuildMask_IdentityIsAllPreserve(t *testing.T) {
	mask := BuildMask(64, 48, 64, 48)

	assert.Equal(t, 0, countGenerated(mask))
	for _, v := range mask.Pix {
		assert.Equal(t, MaskPreserve, v)
	}
}

func TestBuildMask_OneSidedPadding(t *testing.T) {
	// only one extra column: it goes to the right strip
	mask := BuildMask(7, 8, 8, 8)

	assert.Equal(t, 8, countGenerated(mask))
	for y := 0; y < 8; y++ {
		assert.Equal(t, MaskGenerate, mask.GrayAt(7, y).Y)
		assert.Equal(t, MaskPreserve, mask.GrayAt(0, y).Y)
	}
}

func TestPrepare_SharesGeometry(t *testing.T) {
	src := solidImage(400, 300, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	prepared := Prepare(src, 512, 512)

	assert.Equal(t, prepared.Image.Bounds(), prepared.Mask.Bounds())
	assert.Equal(t, Padding{Left: 56, Top: 106, Right: 56, Bottom: 106}, prepared.Padding)

	inner := prepared.Padding.Inner(400, 300)
	b := prepared.Mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			inside := image.Pt(x, y).In(inner)
			preserved := prepared.Mask.GrayAt(x, y).Y == MaskPreserve
			if inside != preserved {
				t.Fatalf("mask and padded image disagree at (%d,%d)", x, y)
			}
			if !inside && prepared.Image.RGBAAt(x, y) != FillColor {
				t.Fatalf("border pixel (%d,%d) is not fill color", x, y)
			}
		}
	}
}

func TestPadWithAndMaskWith_UseGivenPadding(t *testing.T) {
	src := solidImage(4, 4, color.RGBA{B: 255, A: 255})
	// deliberately off-center: helpers must not recompute geometry
	p := Padding{Left: 1, Top: 3, Right: 3, Bottom: 1}

	dst := padWith(src, p, 8, 8)
	mask := maskWith(p, 8, 8)

	inner := p.Inner(4, 4)
	require.Equal(t, image.Rect(1, 3, 5, 7), inner)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			inside := image.Pt(x, y).In(inner)
			assert.Equal(t, inside, mask.GrayAt(x, y).Y == MaskPreserve, "mask at (%d,%d)", x, y)
			if inside {
				assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(x, y))
			} else {
				assert.Equal(t, FillColor, dst.RGBAAt(x, y))
			}
		}
	}
}

func TestPrepare_SameSizeTarget(t *testing.T) {
	src := solidImage(16, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	prepared := Prepare(src, 16, 8)

	assert.True(t, prepared.Padding.IsZero())
	assert.Equal(t, 0, countGenerated(prepared.Mask))
	assert.Equal(t, src.Pix, prepared.Image.Pix)
}
