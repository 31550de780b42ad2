package canvas

import (
	"testing"

	"pgregory.net/rapid"
)

func TestProperty_CalculatePadding_FillsTarget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ow := rapid.IntRange(1, 4096).Draw(rt, "original_width")
		oh := rapid.IntRange(1, 4096).Draw(rt, "original_height")
		tw := rapid.IntRange(ow, 8192).Draw(rt, "target_width")
		th := rapid.IntRange(oh, 8192).Draw(rt, "target_height")

		p := CalculatePadding(ow, oh, tw, th)

		if p.Left+p.Right != tw-ow {
			rt.Fatalf("left+right = %d, want %d", p.Left+p.Right, tw-ow)
		}
		if p.Top+p.Bottom != th-oh {
			rt.Fatalf("top+bottom = %d, want %d", p.Top+p.Bottom, th-oh)
		}
		if p.Left != (tw-ow)/2 || p.Top != (th-oh)/2 {
			rt.Fatalf("unexpected left/top: %+v", p)
		}
		if p.Right < p.Left || p.Right-p.Left > 1 || p.Bottom < p.Top || p.Bottom-p.Top > 1 {
			rt.Fatalf("padding is not centered: %+v", p)
		}
	})
}

func TestProperty_BuildMask_MarksExactlyTheBorder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ow := rapid.IntRange(1, 48).Draw(rt, "original_width")
		oh := rapid.IntRange(1, 48).Draw(rt, "original_height")
		tw := rapid.IntRange(ow, 64).Draw(rt, "target_width")
		th := rapid.IntRange(oh, 64).Draw(rt, "target_height")

		mask := BuildMask(ow, oh, tw, th)
		if mask.Bounds().Dx() != tw || mask.Bounds().Dy() != th {
			rt.Fatalf("mask size %v, want %dx%d", mask.Bounds().Size(), tw, th)
		}

		inner := CalculatePadding(ow, oh, tw, th).Inner(ow, oh)
		generated := 0
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				v := mask.GrayAt(x, y).Y
				switch v {
				case MaskGenerate:
					generated++
					if inInner(x, y, inner.Min.X, inner.Min.Y, inner.Max.X, inner.Max.Y) {
						rt.Fatalf("pixel (%d,%d) inside original region marked for generation", x, y)
					}
				case MaskPreserve:
					if !inInner(x, y, inner.Min.X, inner.Min.Y, inner.Max.X, inner.Max.Y) {
						rt.Fatalf("border pixel (%d,%d) not marked for generation", x, y)
					}
				default:
					rt.Fatalf("non-binary mask value %d at (%d,%d)", v, x, y)
				}
			}
		}
		if generated != tw*th-ow*oh {
			rt.Fatalf("generated pixels = %d, want %d", generated, tw*th-ow*oh)
		}
	})
}

func inInner(x, y, minX, minY, maxX, maxY int) bool {
	return x >= minX && x < maxX && y >= minY && y < maxY
}
