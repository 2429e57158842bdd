package core

// Circle is a circular collider.
type Circle struct {
	Center Vec2
	Radius float64
}

// Rect is an axis-aligned rectangle with its top-left corner at X,Y.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) MinX() float64 {
	return r.X
}

func (r Rect) MinY() float64 {
	return r.Y
}

func (r Rect) MaxX() float64 {
	return r.X + r.W
}

func (r Rect) MaxY() float64 {
	return r.Y + r.H
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Vec2 {
	return Vec2{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside the rectangle or on its edge.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.MaxX() && p.Y >= r.Y && p.Y <= r.MaxY()
}

// ClosestPoint clamps p onto the rectangle.
func (r Rect) ClosestPoint(p Vec2) Vec2 {
	return Vec2{
		X: ClampF(p.X, r.X, r.MaxX()),
		Y: ClampF(p.Y, r.Y, r.MaxY()),
	}
}

// Segment is a line segment from A to B.
type Segment struct {
	A Vec2
	B Vec2
}

// Midpoint returns the center of the segment.
func (s Segment) Midpoint() Vec2 {
	return s.A.Lerp(s.B, 0.5)
}

// Direction returns the unnormalized vector from A to B.
func (s Segment) Direction() Vec2 {
	return s.B.Sub(s.A)
}

// ObstacleKind tags which shape an Obstacle carries.
type ObstacleKind uint8

const (
	ObstacleCircle ObstacleKind = iota
	ObstacleRect
)

func (k ObstacleKind) String() string {
	switch k {
	case ObstacleCircle:
		return "circle"
	case ObstacleRect:
		return "rect"
	default:
		return "unknown"
	}
}

// Obstacle is a static collider: either a circle or an axis-aligned rectangle.
// Only the field matching Kind is meaningful.
type Obstacle struct {
	Kind   ObstacleKind
	Circle Circle
	Rect   Rect
}

// CircleObstacle builds a circular obstacle.
func CircleObstacle(x, y, radius float64) Obstacle {
	return Obstacle{Kind: ObstacleCircle, Circle: Circle{Center: Vec2{X: x, Y: y}, Radius: radius}}
}

// RectObstacle builds a rectangular obstacle.
func RectObstacle(x, y, w, h float64) Obstacle {
	return Obstacle{Kind: ObstacleRect, Rect: Rect{X: x, Y: y, W: w, H: h}}
}

// ClosestPoint returns the point on the obstacle nearest to p.
func (o Obstacle) ClosestPoint(p Vec2) Vec2 {
	if o.Kind == ObstacleRect {
		return o.Rect.ClosestPoint(p)
	}
	d := p.Sub(o.Circle.Center)
	l := d.Length()
	if l <= o.Circle.Radius {
		return p
	}
	return o.Circle.Center.Add(d.Scale(o.Circle.Radius / l))
}
