package model

import "math"

// Location: точка в игровом мире.
// Value type, передаётся по значению (immutable).
type Location struct {
	X float64
	Y float64
	Z float64
}

// Vector: направление или смещение. Тот же набор координат, что у Location.
type Vector struct {
	X float64
	Y float64
	Z float64
}

// NewLocation создаёт Location с указанными координатами.
func NewLocation(x, y, z float64) Location {
	return Location{X: x, Y: y, Z: z}
}

// DistanceSquared возвращает квадрат расстояния до другой точки (без sqrt для производительности).
func (l Location) DistanceSquared(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance возвращает евклидово расстояние.
func (l Location) Distance(other Location) float64 {
	return math.Sqrt(l.DistanceSquared(other))
}

// Sub returns the vector pointing from other to l.
func (l Location) Sub(other Location) Vector {
	return Vector{X: l.X - other.X, Y: l.Y - other.Y, Z: l.Z - other.Z}
}

// Add offsets the location by v.
func (l Location) Add(v Vector) Location {
	return Location{X: l.X + v.X, Y: l.Y + v.Y, Z: l.Z + v.Z}
}

// Length returns the vector magnitude.
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale multiplies every component by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product.
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Normalize returns the unit vector. Zero vector stays zero.
func (v Vector) Normalize() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}
	return v.Scale(1 / l)
}

// AngleTo returns the angle between v and o in degrees, 0..180.
// Returns 0 if either vector is zero.
func (v Vector) AngleTo(o Vector) float64 {
	lv, lo := v.Length(), o.Length()
	if lv == 0 || lo == 0 {
		return 0
	}
	cos := v.Dot(o) / (lv * lo)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
