package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/eak1mov/go-minimaps/blp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("minimaps: cannot decode tile")

// Decode decodes a tile in any registered format (BLP2, PNG, JPEG, WebP, BMP).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}
