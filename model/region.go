package model

import "math"

// Point is a planar map position. Any elevation carried by the source is
// dropped before a Point is built.
type Point struct {
	X float64
	Y float64
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Region is a named polygon. Vertices are stored open: the edge from the last
// vertex back to the first is implied.
type Region struct {
	Name     string
	Vertices []Point
}

// Clone returns a deep copy of the region.
func (r Region) Clone() Region {
	return Region{
		Name:     r.Name,
		Vertices: append([]Point(nil), r.Vertices...),
	}
}
