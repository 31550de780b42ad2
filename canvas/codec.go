package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidImage is returned when the payload is not a decodable image.
	ErrInvalidImage = errors.New("invalid image file or corrupted")
	// ErrImageTooLarge is returned when the declared dimensions exceed the
	// caller's limit. Nothing beyond the header has been decoded at that point.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// TooLargeError carries the declared size of an image rejected by Decode.
type TooLargeError struct {
	Width, Height       int
	MaxWidth, MaxHeight int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %dx%d exceeds %dx%d",
		ErrImageTooLarge, e.Width, e.Height, e.MaxWidth, e.MaxHeight)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrImageTooLarge }

// DefaultJPEGQuality is used when the configured quality is out of range.
const DefaultJPEGQuality = 95

// Decode parses an uploaded payload. The header is read first and a declared
// size wider than maxWidth or taller than maxHeight fails with a
// *TooLargeError before any pixel buffer is allocated; a limit <= 0 disables
// that axis. Format and corruption failures wrap ErrInvalidImage; anything
// else (including a decoder panic) is returned as an unexpected error.
func Decode(data []byte, maxWidth, maxHeight int) (img image.Image, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, format = nil, ""
			err = fmt.Errorf("unexpected error while decoding image: %v", r)
		}
	}()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if (maxWidth > 0 && cfg.Width > maxWidth) || (maxHeight > 0 && cfg.Height > maxHeight) {
		return nil, "", &TooLargeError{
			Width: cfg.Width, Height: cfg.Height,
			MaxWidth: maxWidth, MaxHeight: maxHeight,
		}
	}

	img, format, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}
	return img, format, nil
}

// EncodeJPEG writes img as JPEG with the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// EncodePNG returns img encoded as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
