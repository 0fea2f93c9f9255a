// Package blp implements a decoder for BLP2 textures, the format of
// minimap tiles. Only the first mip level is decoded.
//
// Importing this package registers the "blp" format with the image package.
package blp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const (
	compressionPalette = 1
	compressionDXT     = 2
	compressionBGRA    = 3

	alphaTypeDXT1 = 0
	alphaTypeDXT3 = 1
	alphaTypeDXT5 = 7

	headerLength  = 148
	paletteLength = 256 * 4

	maxDimension = 1 << 13
)

var (
	ErrInvalidHeader = errors.New("blp: invalid header")
	ErrUnsupported   = errors.New("blp: unsupported encoding")
	ErrTruncated     = errors.New("blp: truncated image data")
)

type header struct {
	Magic       [4]byte
	Type        uint32
	Compression uint8
	AlphaDepth  uint8
	AlphaType   uint8
	HasMips     uint8
	Width       uint32
	Height      uint32
	MipOffsets  [16]uint32
	MipSizes    [16]uint32
}

func init() {
	image.RegisterFormat("blp", "BLP2", Decode, DecodeConfig)
}

func readHeader(data []byte) (*header, error) {
	h := header{}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if string(h.Magic[:]) != "BLP2" {
		return nil, fmt.Errorf("%w: magic %q", ErrInvalidHeader, h.Magic[:])
	}
	if h.Type != 1 {
		return nil, fmt.Errorf("%w: content type %d", ErrUnsupported, h.Type)
	}
	if h.Width == 0 || h.Height == 0 || h.Width > maxDimension || h.Height > maxDimension {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidHeader, h.Width, h.Height)
	}
	return &h, nil
}

// DecodeConfig returns the dimensions of a BLP2 texture without decoding it.
func DecodeConfig(r io.Reader) (image.Config, error) {
	buffer := make([]byte, headerLength)
	if _, err := io.ReadFull(r, buffer); err != nil {
		return image.Config{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	h, err := readHeader(buffer)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// Decode reads a BLP2 texture and returns its first mip level as an
// *image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	offset, size := uint64(h.MipOffsets[0]), uint64(h.MipSizes[0])
	if offset+size > uint64(len(data)) {
		return nil, fmt.Errorf("%w: mip 0 at %d+%d, file is %d bytes", ErrTruncated, offset, size, len(data))
	}
	mip := data[offset : offset+size]

	img := image.NewNRGBA(image.Rect(0, 0, int(h.Width), int(h.Height)))
	switch h.Compression {
	case compressionPalette:
		if len(data) < headerLength+paletteLength {
			return nil, fmt.Errorf("%w: palette", ErrTruncated)
		}
		var palette [256]uint32
		for i := range palette {
			palette[i] = binary.LittleEndian.Uint32(data[headerLength+4*i:])
		}
		err = decodePalette(img, mip, &palette, h.AlphaDepth)
	case compressionDXT:
		err = decodeDXT(img, mip, h.AlphaDepth, h.AlphaType)
	case compressionBGRA:
		err = decodeBGRA(img, mip, h.AlphaDepth)
	default:
		err = fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func decodePalette(img *image.NRGBA, mip []byte, palette *[256]uint32, alphaDepth uint8) error {
	count := img.Rect.Dx() * img.Rect.Dy()
	alphaLength := (count*int(alphaDepth) + 7) / 8
	if alphaDepth != 0 && alphaDepth != 1 && alphaDepth != 4 && alphaDepth != 8 {
		return fmt.Errorf("%w: alpha depth %d", ErrUnsupported, alphaDepth)
	}
	if len(mip) < count+alphaLength {
		return fmt.Errorf("%w: %d bytes, want %d", ErrTruncated, len(mip), count+alphaLength)
	}
	alpha := mip[count:]

	for i := range count {
		c := palette[mip[i]]
		p := img.Pix[i*4 : i*4+4]
		p[0] = uint8(c >> 16)
		p[1] = uint8(c >> 8)
		p[2] = uint8(c)
		switch alphaDepth {
		case 0:
			p[3] = 0xff
		case 1:
			p[3] = (alpha[i/8] >> (i % 8) & 1) * 0xff
		case 4:
			p[3] = (alpha[i/2] >> (4 * (i % 2)) & 0xf) * 0x11
		case 8:
			p[3] = alpha[i]
		}
	}
	return nil
}

func decodeBGRA(img *image.NRGBA, mip []byte, alphaDepth uint8) error {
	count := img.Rect.Dx() * img.Rect.Dy()
	if len(mip) < count*4 {
		return fmt.Errorf("%w: %d bytes, want %d", ErrTruncated, len(mip), count*4)
	}
	for i := range count {
		s := mip[i*4 : i*4+4]
		p := img.Pix[i*4 : i*4+4]
		p[0], p[1], p[2], p[3] = s[2], s[1], s[0], s[3]
		if alphaDepth == 0 {
			p[3] = 0xff
		}
	}
	return nil
}
