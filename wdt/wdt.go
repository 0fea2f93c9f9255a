// Package wdt reads map layout (WDT) files and lists the minimap tiles
// they reference.
//
// A WDT file is a sequence of chunks, each a little-endian uint32 magic
// (the four-character code stored reversed), a uint32 payload size and the
// payload. The MAID chunk holds 64x64 entries of eight file data IDs each,
// row by row; the last ID of an entry is the minimap texture.
package wdt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eak1mov/go-minimaps/tile"
)

const (
	chunkMVER uint32 = 'M'<<24 | 'V'<<16 | 'E'<<8 | 'R'
	chunkMAID uint32 = 'M'<<24 | 'A'<<16 | 'I'<<8 | 'D'

	chunkHeaderLength = 8
)

var ErrMalformedLayout = errors.New("minimaps: malformed layout")

type chunkHeader struct {
	Magic uint32
	Size  uint32
}

// Entry is a single MAID record: file data IDs of the files making up one
// map cell.
type Entry struct {
	RootADT        uint32
	Obj0ADT        uint32
	Obj1ADT        uint32
	Tex0ADT        uint32
	LodADT         uint32
	MapTexture     uint32
	MapTextureN    uint32
	MinimapTexture uint32
}

var entryLength = binary.Size(Entry{})

func magicString(magic uint32) string {
	return string([]byte{byte(magic >> 24), byte(magic >> 16), byte(magic >> 8), byte(magic)})
}

func readChunks(data []byte) (map[uint32][]byte, error) {
	chunks := make(map[uint32][]byte)
	for offset := 0; offset < len(data); {
		if len(data)-offset < chunkHeaderLength {
			return nil, fmt.Errorf("%w: truncated chunk header at offset %d", ErrMalformedLayout, offset)
		}
		header := chunkHeader{}
		if err := binary.Read(bytes.NewReader(data[offset:]), binary.LittleEndian, &header); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedLayout, err)
		}
		offset += chunkHeaderLength
		if uint64(header.Size) > uint64(len(data)-offset) {
			return nil, fmt.Errorf("%w: chunk %v at offset %d overruns file (%d > %d)",
				ErrMalformedLayout, magicString(header.Magic), offset-chunkHeaderLength, header.Size, len(data)-offset)
		}
		if _, seen := chunks[header.Magic]; !seen {
			chunks[header.Magic] = data[offset : offset+int(header.Size)]
		}
		offset += int(header.Size)
	}
	return chunks, nil
}

// ReadEntries returns the MAID entries of a WDT file in file order.
func ReadEntries(data []byte) ([]Entry, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return nil, err
	}
	if _, found := chunks[chunkMVER]; !found {
		return nil, fmt.Errorf("%w: MVER chunk not found", ErrMalformedLayout)
	}
	maid, found := chunks[chunkMAID]
	if !found {
		return nil, fmt.Errorf("%w: MAID chunk not found", ErrMalformedLayout)
	}
	if len(maid)%entryLength != 0 || len(maid) > tile.GridSize*tile.GridSize*entryLength {
		return nil, fmt.Errorf("%w: invalid MAID chunk size %d", ErrMalformedLayout, len(maid))
	}

	entries := make([]Entry, len(maid)/entryLength)
	if err := binary.Read(bytes.NewReader(maid), binary.LittleEndian, entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLayout, err)
	}
	return entries, nil
}

// Parse returns a descriptor for every MAID entry, in file order. Cells
// without a minimap texture are included with a zero ContentID; callers
// filter them with tile.Present.
func Parse(data []byte) ([]tile.Descriptor, error) {
	entries, err := ReadEntries(data)
	if err != nil {
		return nil, err
	}
	descs := make([]tile.Descriptor, len(entries))
	for i, entry := range entries {
		descs[i] = tile.Descriptor{
			X:         uint32(i % tile.GridSize),
			Y:         uint32(i / tile.GridSize),
			ContentID: entry.MinimapTexture,
		}
	}
	return descs, nil
}
