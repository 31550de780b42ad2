package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

const (
	// MaskPreserve marks pixels the model must keep.
	MaskPreserve uint8 = 0
	// MaskGenerate marks pixels the model must fill in.
	MaskGenerate uint8 = 255
)

// BuildMask returns a single-channel mask of the target size where the padded
// border is MaskGenerate and the centered original region is MaskPreserve. It
// uses the same geometry as Pad.
func BuildMask(originalWidth, originalHeight, targetWidth, targetHeight int) *image.Gray {
	return maskWith(CalculatePadding(originalWidth, originalHeight, targetWidth, targetHeight), targetWidth, targetHeight)
}

func maskWith(p Padding, targetWidth, targetHeight int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
	if p.IsZero() {
		return mask
	}
	generate := image.NewUniform(color.Gray{Y: MaskGenerate})

	// Corners are covered twice; harmless for a binary mask.
	strips := []image.Rectangle{
		image.Rect(0, 0, p.Left, targetHeight),
		image.Rect(targetWidth-p.Right, 0, targetWidth, targetHeight),
		image.Rect(0, 0, targetWidth, p.Top),
		image.Rect(0, targetHeight-p.Bottom, targetWidth, targetHeight),
	}
	for _, r := range strips {
		if r.Empty() {
			continue
		}
		draw.Draw(mask, r, generate, image.Point{}, draw.Src)
	}
	return mask
}

// Prepared holds everything the model needs for one outpainting call.
type Prepared struct {
	Image   *image.RGBA
	Mask    *image.Gray
	Padding Padding
}

// Prepare pads src to the target size and builds the matching mask. The
// padding is computed once and shared by both.
func Prepare(src image.Image, targetWidth, targetHeight int) Prepared {
	b := src.Bounds()
	p := CalculatePadding(b.Dx(), b.Dy(), targetWidth, targetHeight)
	return Prepared{
		Image:   padWith(src, p, targetWidth, targetHeight),
		Mask:    maskWith(p, targetWidth, targetHeight),
		Padding: p,
	}
}
