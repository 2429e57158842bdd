// Package collision holds the pure geometric tests and minimum-translation
// resolution used by vehicle dynamics. Nothing here keeps state.
package collision

import "github.com/tiledrace/racecore/pkg/core"

// fallbackAxis is used when two centers coincide and no separating direction exists.
var fallbackAxis = core.Vec2{X: 1, Y: 0}

// CircleVsCircle reports whether two circles whose radii sum to rsum overlap.
// Touching circles do not overlap.
func CircleVsCircle(a, b core.Vec2, rsum float64) bool {
	return a.DistSq(b) < rsum*rsum
}

// ResolveCircleCircle returns the translation to apply to a so that it no longer
// overlaps b. ok is false when the circles do not overlap.
func ResolveCircleCircle(a, b core.Vec2, rsum float64) (mtv core.Vec2, ok bool) {
	if !CircleVsCircle(a, b, rsum) {
		return core.Vec2{}, false
	}
	d := a.Sub(b)
	dist := d.Length()
	axis := fallbackAxis
	if dist > 0 {
		axis = d.Scale(1 / dist)
	}
	return axis.Scale(rsum - dist), true
}

// CircleVsRect reports whether the circle overlaps the rectangle. The test uses
// the squared distance from the center to the clamped nearest point.
func CircleVsRect(c core.Vec2, r float64, rect core.Rect) bool {
	return c.DistSq(rect.ClosestPoint(c)) < r*r
}

// ResolveCircleRect returns the translation that pushes the circle out of the
// rectangle. ok is false when they do not overlap.
//
// When the center lies outside the rectangle the push runs along
// center-minus-nearest-point scaled to the penetration depth. When the center is
// inside (nearest point distance is zero) the circle exits through the closest
// edge so the result is always separating.
func ResolveCircleRect(c core.Vec2, r float64, rect core.Rect) (mtv core.Vec2, ok bool) {
	if !CircleVsRect(c, r, rect) {
		return core.Vec2{}, false
	}
	nearest := rect.ClosestPoint(c)
	d := c.Sub(nearest)
	dist := d.Length()
	if dist > 0 {
		return d.Scale((r - dist) / dist), true
	}
	return exitInside(c, r, rect), true
}

// exitInside finds the shortest push moving a center that lies inside rect
// (or on its boundary) to radius r beyond the nearest edge.
func exitInside(c core.Vec2, r float64, rect core.Rect) core.Vec2 {
	left := c.X - rect.MinX()
	right := rect.MaxX() - c.X
	top := c.Y - rect.MinY()
	bottom := rect.MaxY() - c.Y

	best := right
	mtv := core.Vec2{X: right + r}
	if left < best {
		best = left
		mtv = core.Vec2{X: -(left + r)}
	}
	if top < best {
		best = top
		mtv = core.Vec2{Y: -(top + r)}
	}
	if bottom < best {
		mtv = core.Vec2{Y: bottom + r}
	}
	return mtv
}

// SegmentIntersect reports whether segment p1-p2 crosses segment q1-q2 using the
// parametric form. Parallel and coincident segments never intersect.
func SegmentIntersect(p1, p2, q1, q2 core.Vec2) bool {
	_, ok := SegmentIntersection(p1, p2, q1, q2)
	return ok
}

// SegmentIntersection is SegmentIntersect that also returns the crossing point.
func SegmentIntersection(p1, p2, q1, q2 core.Vec2) (core.Vec2, bool) {
	t, ok := segmentParam(p1, p2, q1, q2)
	if !ok {
		return core.Vec2{}, false
	}
	return p1.Add(p2.Sub(p1).Scale(t)), true
}

// MoveCrosses reports whether a movement from -> to crosses the gate a-b.
// A move that starts on the gate does not cross it; one that ends on it does.
func MoveCrosses(from, to, a, b core.Vec2) bool {
	t, ok := segmentParam(from, to, a, b)
	return ok && t > 0
}

// segmentParam returns the position t in [0,1] along p1-p2 at which it meets
// q1-q2.
func segmentParam(p1, p2, q1, q2 core.Vec2) (float64, bool) {
	r := p2.Sub(p1)
	s := q2.Sub(q1)
	denom := r.Cross(s)
	if denom == 0 {
		return 0, false
	}
	qp := q1.Sub(p1)
	t := qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// ResolveObstacle dispatches to the resolver matching the obstacle's shape.
func ResolveObstacle(c core.Vec2, r float64, o core.Obstacle) (core.Vec2, bool) {
	switch o.Kind {
	case core.ObstacleRect:
		return ResolveCircleRect(c, r, o.Rect)
	default:
		return ResolveCircleCircle(c, o.Circle.Center, r+o.Circle.Radius)
	}
}
