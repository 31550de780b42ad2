package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// FillColor is the constant used for the padded border.
var FillColor = color.RGBA{A: 0xff}

// Pad returns a new RGBA image of exactly targetWidth x targetHeight with src
// centered according to CalculatePadding and the border filled with FillColor.
// src is never modified.
func Pad(src image.Image, targetWidth, targetHeight int) *image.RGBA {
	b := src.Bounds()
	return padWith(src, CalculatePadding(b.Dx(), b.Dy(), targetWidth, targetHeight), targetWidth, targetHeight)
}

func padWith(src image.Image, p Padding, targetWidth, targetHeight int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	if !p.IsZero() {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(FillColor), image.Point{}, draw.Src)
	}
	draw.Draw(dst, p.Inner(b.Dx(), b.Dy()), src, b.Min, draw.Src)
	return dst
}
