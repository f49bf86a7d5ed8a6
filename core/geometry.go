package core

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/signalsfoundry/regionwatch/model"
)

// closedRing converts open vertices into an orb ring whose last point repeats
// the first.
func closedRing(vertices []model.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// ringContains reports whether p lies inside ring or on its boundary. The
// bound is precomputed by the caller so rejected points cost four compares.
func ringContains(ring orb.Ring, bound orb.Bound, p model.Point) bool {
	pt := orb.Point{p.X, p.Y}
	if !bound.Contains(pt) {
		return false
	}
	return planar.RingContains(ring, pt)
}

// vertexMean is the arithmetic mean of the open vertex list. This is not the
// area centroid; labels are anchored here to match existing viewers.
func vertexMean(vertices []model.Point) model.Point {
	if len(vertices) == 0 {
		return model.Point{}
	}
	var sx, sy float64
	for _, v := range vertices {
		sx += v.X
		sy += v.Y
	}
	n := float64(len(vertices))
	return model.Point{X: sx / n, Y: sy / n}
}

func ringPoints(ring orb.Ring) []model.Point {
	pts := make([]model.Point, len(ring))
	for i, p := range ring {
		pts[i] = model.Point{X: p[0], Y: p[1]}
	}
	return pts
}
