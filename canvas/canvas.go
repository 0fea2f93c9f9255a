// Package canvas composes decoded minimap tiles into a single map image.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/eak1mov/go-minimaps/tile"
	xdraw "golang.org/x/image/draw"
)

var ErrOutOfBounds = errors.New("minimaps: tile outside canvas")

// Canvas is the output bitmap of one map. It is not safe for concurrent use.
type Canvas struct {
	img      *image.NRGBA
	tileSize int
	placed   int
	scaled   int
}

// New allocates a transparent canvas of the given pixel size, holding
// square tiles of tileSize pixels.
func New(width, height, tileSize int) *Canvas {
	return &Canvas{
		img:      image.NewNRGBA(image.Rect(0, 0, width, height)),
		tileSize: tileSize,
	}
}

// NewForBounds allocates a canvas covering every cell of b.
func NewForBounds(b tile.Bounds, tileSize int) *Canvas {
	return New(b.Cols()*tileSize, b.Rows()*tileSize, tileSize)
}

func (c *Canvas) Bounds() image.Rectangle { return c.img.Rect }
func (c *Canvas) TileSize() int           { return c.tileSize }
func (c *Canvas) Image() *image.NRGBA     { return c.img }

// Placed returns the number of tiles drawn so far.
func (c *Canvas) Placed() int { return c.placed }

// Scaled returns the number of drawn tiles that had to be resized to the
// canvas tile size.
func (c *Canvas) Scaled() int { return c.scaled }

// Place decodes data and draws it at the cell of d. Errors leave the
// canvas unchanged.
func (c *Canvas) Place(data []byte, d tile.Descriptor, minX, minY uint32) error {
	img, err := Decode(data)
	if err != nil {
		return err
	}
	return c.PlaceImage(img, d, minX, minY)
}

// PlaceImage draws img at the cell of d, relative to the top-left cell
// (minX, minY), replacing any pixels already there. Tiles of a different
// size are scaled to the canvas tile size.
func (c *Canvas) PlaceImage(img image.Image, d tile.Descriptor, minX, minY uint32) error {
	if d.X < minX || d.Y < minY {
		return fmt.Errorf("%w: cell (%d,%d) before origin (%d,%d)", ErrOutOfBounds, d.X, d.Y, minX, minY)
	}
	offset := image.Pt(int(d.X-minX)*c.tileSize, int(d.Y-minY)*c.tileSize)
	dst := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(c.tileSize, c.tileSize))}
	if !dst.In(c.img.Rect) {
		return fmt.Errorf("%w: cell (%d,%d) maps to %v, canvas is %v", ErrOutOfBounds, d.X, d.Y, dst, c.img.Rect)
	}

	src := img.Bounds()
	if src.Dx() == c.tileSize && src.Dy() == c.tileSize {
		draw.Draw(c.img, dst, img, src.Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(c.img, dst, img, src, xdraw.Src, nil)
		c.scaled++
	}
	c.placed++
	return nil
}

// Finalize writes the canvas to w as PNG.
func (c *Canvas) Finalize(w io.Writer) error {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	return encoder.Encode(w, c.img)
}
