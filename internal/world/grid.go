package world

import "math"

// DefaultCellSize is the edge of one grid cell in world units.
const DefaultCellSize = 32.0

// cellKey is the integer index of a cell: floor(coord / size).
type cellKey struct {
	X, Y int32
}

// cellOf converts a world coordinate to its cell index.
func cellOf(x, y, size float64) cellKey {
	return cellKey{
		X: int32(math.Floor(x / size)),
		Y: int32(math.Floor(y / size)),
	}
}

// cellsAround returns every cell that intersects the square bounding the circle.
func cellsAround(x, y, radius, size float64) []cellKey {
	lo := cellOf(x-radius, y-radius, size)
	hi := cellOf(x+radius, y+radius, size)

	keys := make([]cellKey, 0, int(hi.X-lo.X+1)*int(hi.Y-lo.Y+1))
	for cx := lo.X; cx <= hi.X; cx++ {
		for cy := lo.Y; cy <= hi.Y; cy++ {
			keys = append(keys, cellKey{X: cx, Y: cy})
		}
	}
	return keys
}

// cellCenter returns the world coordinate of the cell center.
func cellCenter(k cellKey, size float64) (x, y float64) {
	return (float64(k.X) + 0.5) * size, (float64(k.Y) + 0.5) * size
}
