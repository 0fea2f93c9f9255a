// Package tile provides common minimap tile types.
package tile

// GridSize is the number of grid cells along each axis of a map layout.
const GridSize = 64

// Descriptor places one minimap texture at a cell of the map grid.
// ContentID is the file data ID of the texture; zero means there is no
// tile at this cell.
type Descriptor struct {
	X         uint32
	Y         uint32
	ContentID uint32
}

// Absent reports whether the descriptor is a placeholder for an empty cell.
func (d Descriptor) Absent() bool {
	return d.ContentID == 0
}

// Present returns the descriptors that refer to actual tiles, preserving order.
func Present(descs []Descriptor) []Descriptor {
	result := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		if !d.Absent() {
			result = append(result, d)
		}
	}
	return result
}

// Bounds is an inclusive rectangle of grid cells.
type Bounds struct {
	MinX uint32
	MinY uint32
	MaxX uint32
	MaxY uint32
}

func (b Bounds) Cols() int { return int(b.MaxX-b.MinX) + 1 }
func (b Bounds) Rows() int { return int(b.MaxY-b.MinY) + 1 }

// BoundsOf returns the smallest rectangle covering all descriptors.
// It returns false if descs is empty.
func BoundsOf(descs []Descriptor) (Bounds, bool) {
	if len(descs) == 0 {
		return Bounds{}, false
	}
	b := Bounds{MinX: descs[0].X, MinY: descs[0].Y, MaxX: descs[0].X, MaxY: descs[0].Y}
	for _, d := range descs[1:] {
		b.MinX = min(b.MinX, d.X)
		b.MinY = min(b.MinY, d.Y)
		b.MaxX = max(b.MaxX, d.X)
		b.MaxY = max(b.MaxY, d.Y)
	}
	return b, true
}
