// Package internal provides fixtures shared by the package tests.
package internal

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"

	"github.com/eak1mov/go-minimaps/tile"
)

// WDT builds a layout file with MVER, MPHD and MAID chunks. Every cell not
// covered by descs holds no tile.
func WDT(descs []tile.Descriptor) []byte {
	var maid [tile.GridSize * tile.GridSize][8]uint32
	for _, d := range descs {
		maid[d.Y*tile.GridSize+d.X][7] = d.ContentID
	}

	var buffer bytes.Buffer
	writeChunk(&buffer, "MVER", uint32(18))
	writeChunk(&buffer, "MPHD", [8]uint32{0x200})
	writeChunk(&buffer, "MAID", maid)
	return buffer.Bytes()
}

// Chunk encodes a single chunk with the given magic and payload. It is
// useful for building malformed layouts.
func Chunk(magic string, payload []byte) []byte {
	var buffer bytes.Buffer
	writeChunk(&buffer, magic, payload)
	return buffer.Bytes()
}

func writeChunk(buffer *bytes.Buffer, magic string, payload any) {
	reversed := []byte{magic[3], magic[2], magic[1], magic[0]}
	buffer.Write(reversed)
	binary.Write(buffer, binary.LittleEndian, uint32(binary.Size(payload)))
	binary.Write(buffer, binary.LittleEndian, payload)
}

// PNG returns a size x size PNG filled with c.
func PNG(size int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.SetNRGBA(x, y, c)
		}
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		panic(err)
	}
	return buffer.Bytes()
}

// BLP returns an uncompressed BGRA BLP2 texture of the given size filled with c.
func BLP(width, height int, c color.NRGBA) []byte {
	pixels := make([]byte, 0, width*height*4)
	for range width * height {
		pixels = append(pixels, c.B, c.G, c.R, c.A)
	}
	return BLPRaw(3, 8, 0, width, height, nil, pixels)
}

// BLPRaw assembles a BLP2 file with a single mip level.
func BLPRaw(compression, alphaDepth, alphaType uint8, width, height int, palette []uint32, mip []byte) []byte {
	const headerLength = 148 + 256*4

	var buffer bytes.Buffer
	buffer.WriteString("BLP2")
	binary.Write(&buffer, binary.LittleEndian, uint32(1))
	buffer.Write([]byte{compression, alphaDepth, alphaType, 0})
	binary.Write(&buffer, binary.LittleEndian, [2]uint32{uint32(width), uint32(height)})

	var offsets, sizes [16]uint32
	offsets[0] = headerLength
	sizes[0] = uint32(len(mip))
	binary.Write(&buffer, binary.LittleEndian, offsets)
	binary.Write(&buffer, binary.LittleEndian, sizes)

	var fullPalette [256]uint32
	copy(fullPalette[:], palette)
	binary.Write(&buffer, binary.LittleEndian, fullPalette)

	buffer.Write(mip)
	return buffer.Bytes()
}
