package canvas

import "image"

// Padding describes how many pixels are added on each side of the original
// image to reach the target canvas. Left+width+Right always equals the target
// width, and Top+height+Bottom the target height.
type Padding struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// CalculatePadding computes symmetric padding for placing an image of the
// original size in the center of the target canvas. Any odd leftover pixel
// goes to the right or bottom side.
//
// Callers are expected to pass target >= original; the handler rejects
// smaller targets before this is reached.
func CalculatePadding(originalWidth, originalHeight, targetWidth, targetHeight int) Padding {
	left := (targetWidth - originalWidth) / 2
	top := (targetHeight - originalHeight) / 2
	return Padding{
		Left:   left,
		Top:    top,
		Right:  targetWidth - originalWidth - left,
		Bottom: targetHeight - originalHeight - top,
	}
}

// IsZero reports whether no padding is applied on any side.
func (p Padding) IsZero() bool {
	return p == Padding{}
}

// Inner returns the rectangle the original image occupies on the padded canvas.
func (p Padding) Inner(originalWidth, originalHeight int) image.Rectangle {
	return image.Rect(p.Left, p.Top, p.Left+originalWidth, p.Top+originalHeight)
}
