package blp

import (
	"encoding/binary"
	"fmt"
	"image"
)

type blockDecoder func(block []byte, out *[16][4]uint8)

func decodeDXT(img *image.NRGBA, mip []byte, alphaDepth, alphaType uint8) error {
	var decode blockDecoder
	blockLength := 16
	switch {
	case alphaDepth <= 1 || alphaType == alphaTypeDXT1:
		decode = func(block []byte, out *[16][4]uint8) { decodeColors(block, out, true, alphaDepth > 0) }
		blockLength = 8
	case alphaType == alphaTypeDXT3:
		decode = decodeDXT3
	case alphaType == alphaTypeDXT5:
		decode = decodeDXT5
	default:
		return fmt.Errorf("%w: DXT alpha type %d", ErrUnsupported, alphaType)
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	blocksX, blocksY := (width+3)/4, (height+3)/4
	if len(mip) < blocksX*blocksY*blockLength {
		return fmt.Errorf("%w: %d bytes, want %d", ErrTruncated, len(mip), blocksX*blocksY*blockLength)
	}

	var texels [16][4]uint8
	for by := range blocksY {
		for bx := range blocksX {
			offset := (by*blocksX + bx) * blockLength
			decode(mip[offset:offset+blockLength], &texels)
			for i, c := range texels {
				x, y := bx*4+i%4, by*4+i/4
				if x >= width || y >= height {
					continue
				}
				copy(img.Pix[img.PixOffset(x, y):], c[:])
			}
		}
	}
	return nil
}

func expand565(c uint16) [4]uint8 {
	r := uint8(c >> 11 & 0x1f)
	g := uint8(c >> 5 & 0x3f)
	b := uint8(c & 0x1f)
	return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xff}
}

func mix(a, b [4]uint8, wa, wb, div int) [4]uint8 {
	var result [4]uint8
	for i := range 3 {
		result[i] = uint8((int(a[i])*wa + int(b[i])*wb) / div)
	}
	result[3] = 0xff
	return result
}

// decodeColors decodes the 8-byte color part of a DXT block. In DXT1 mode
// the block may select the three-color variant, whose fourth color is black,
// transparent if punchThrough is set.
func decodeColors(block []byte, out *[16][4]uint8, dxt1, punchThrough bool) {
	c0 := binary.LittleEndian.Uint16(block[0:])
	c1 := binary.LittleEndian.Uint16(block[2:])
	indices := binary.LittleEndian.Uint32(block[4:])

	var colors [4][4]uint8
	colors[0] = expand565(c0)
	colors[1] = expand565(c1)
	if !dxt1 || c0 > c1 {
		colors[2] = mix(colors[0], colors[1], 2, 1, 3)
		colors[3] = mix(colors[0], colors[1], 1, 2, 3)
	} else {
		colors[2] = mix(colors[0], colors[1], 1, 1, 2)
		colors[3] = [4]uint8{0, 0, 0, 0xff}
		if punchThrough {
			colors[3][3] = 0
		}
	}

	for i := range 16 {
		out[i] = colors[indices>>(2*i)&3]
	}
}

func decodeDXT3(block []byte, out *[16][4]uint8) {
	decodeColors(block[8:], out, false, false)
	alpha := binary.LittleEndian.Uint64(block[0:])
	for i := range 16 {
		out[i][3] = uint8(alpha>>(4*i)&0xf) * 0x11
	}
}

func decodeDXT5(block []byte, out *[16][4]uint8) {
	decodeColors(block[8:], out, false, false)

	a0, a1 := int(block[0]), int(block[1])
	var alphas [8]uint8
	alphas[0], alphas[1] = uint8(a0), uint8(a1)
	if a0 > a1 {
		for k := 2; k < 8; k++ {
			alphas[k] = uint8(((8-k)*a0 + (k-1)*a1) / 7)
		}
	} else {
		for k := 2; k < 6; k++ {
			alphas[k] = uint8(((6-k)*a0 + (k-1)*a1) / 5)
		}
		alphas[6], alphas[7] = 0, 0xff
	}

	var bits uint64
	for i := 7; i >= 2; i-- {
		bits = bits<<8 | uint64(block[i])
	}
	for i := range 16 {
		out[i][3] = alphas[bits>>(3*i)&7]
	}
}
